package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := map[ErrorKind]error{
		KindNone:          nil,
		KindValidation:    fmt.Errorf("ledger: %w: amount", ErrValidation),
		KindNotFound:      fmt.Errorf("ledger: get: %w", ErrNotFound),
		KindInvalidAction: ErrInvalidAction,
		KindConflict:      fmt.Errorf("wrap: %w", ErrConflict),
		KindForbidden:     ErrForbidden,
		KindTimeout:       fmt.Errorf("query: %w", context.DeadlineExceeded),
		KindStorage:       errors.New("connection reset"),
	}
	for want, err := range cases {
		assert.Equal(t, want, KindOf(err), "%v", err)
	}
}

func TestUserSafeMessageHidesStorageDetail(t *testing.T) {
	err := fmt.Errorf("ledger: insert: %w: password authentication failed", ErrStorage)
	assert.NotContains(t, UserSafeMessage(err), "password")
	assert.Equal(t, "", UserSafeMessage(nil))

	v := fmt.Errorf("%w: cash must not be negative", ErrValidation)
	assert.Contains(t, UserSafeMessage(v), "cash must not be negative")
}

func TestPeriodStart(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, loc), PeriodDay.Start(now, loc))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), PeriodMonth.Start(now, loc))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, loc), PeriodYear.Start(now, loc))
	assert.Equal(t, []Period{PeriodDay, PeriodMonth, PeriodYear}, DashboardPeriods())

	p, err := ParsePeriod("month")
	assert.NoError(t, err)
	assert.Equal(t, PeriodMonth, p)
	_, err = ParsePeriod("week")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 25)
	assert.Equal(t, Pagination{Page: 1, PerPage: 10, Total: 25, TotalPages: 3}, p)
	assert.Equal(t, 0, p.Offset())

	page, perPage := NormalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, perPage)
	assert.Equal(t, 200, Pagination{Page: page, PerPage: perPage}.Offset())
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithActor(context.Background(), Actor{ID: "a1", Role: RoleAccountant})
	actor, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.True(t, actor.Is(RoleManager, RoleAccountant))
	assert.False(t, actor.Is(RoleAdmin))
	assert.False(t, Role("owner").Valid())
	assert.Equal(t, "daybook:operational:42:lock", ReportLockKey("operational", "42"))
}
