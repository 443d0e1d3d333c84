package aggregate

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOrReuseReturnsExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := prometheus.CounterOpts{Name: "daybook_test_total", Help: "test"}

	first, err := registerOrReuse(reg, prometheus.NewCounterVec(opts, []string{"view"}))
	require.NoError(t, err)
	second, err := registerOrReuse(reg, prometheus.NewCounterVec(opts, []string{"view"}))
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = registerOrReuse(reg, prometheus.NewCounterVec(opts, []string{"other"}))
	assert.Error(t, err)
}
