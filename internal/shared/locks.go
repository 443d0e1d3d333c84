package shared

import "fmt"

// ReportLockKey builds redis keys guarding read-modify-write on a single report.
func ReportLockKey(kind, reportID string) string {
	return fmt.Sprintf("daybook:%s:%s:lock", kind, reportID)
}
