package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

// Series the daybook binaries export; histogram rules use the _bucket suffix.
var exportedSeries = map[string]bool{
	"daybook_http_requests_total":                  true,
	"daybook_http_request_duration_seconds_bucket": true,
	"daybook_api_failures_total":                   true,
	"daybook_jobs_failures_total":                  true,
	"daybook_dashboard_cache_hits_total":           true,
	"daybook_dashboard_cache_miss_total":           true,
}

var seriesPattern = regexp.MustCompile(`daybook_[a-z_]+`)

func loadDaybookRules(t *testing.T) []alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "daybook.yml"))
	require.NoError(t, err)

	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	for _, g := range file.Groups {
		if g.Name == "daybook" {
			return g.Rules
		}
	}
	t.Fatal("daybook alert group missing")
	return nil
}

func TestDaybookAlertRules(t *testing.T) {
	expected := map[string]string{
		"HighErrorRate":          "critical",
		"HighLatency":            "warning",
		"DashboardWarmupFailing": "warning",
		"DashboardCacheCold":     "warning",
		"StorageFailures":        "critical",
	}
	rules := loadDaybookRules(t)
	require.Len(t, rules, len(expected))

	for _, rule := range rules {
		severity, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.Expr, rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		for _, key := range []string{"summary", "description", "runbook"} {
			assert.NotEmpty(t, rule.Annotations[key], "%s: %s", rule.Alert, key)
		}
	}
}

func TestAlertRulesQueryExportedSeries(t *testing.T) {
	for _, rule := range loadDaybookRules(t) {
		series := seriesPattern.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, series, rule.Alert)
		for _, name := range series {
			assert.True(t, exportedSeries[name], "%s queries unknown series %s", rule.Alert, name)
		}
	}
}
