package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScrapeMetrics renders the default Prometheus registry in text format.
func ScrapeMetrics(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned status %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("failed to read metrics body: %v", err)
	}
	return string(body)
}

// ParseMetricValue returns the value of the first sample of metricName whose
// labels include every pair in want.
func ParseMetricValue(metrics, metricName string, want map[string]string) (float64, error) {
	for _, line := range strings.Split(metrics, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") || line == "" {
			continue
		}
		if !strings.HasPrefix(line, metricName) {
			continue
		}

		// Format: metric_name{label1="value1",label2="value2"} value
		remaining := strings.TrimPrefix(line, metricName)
		labels := make(map[string]string)
		if strings.HasPrefix(remaining, "{") {
			end := strings.Index(remaining, "}")
			if end == -1 {
				return 0, fmt.Errorf("invalid metric format: missing closing brace")
			}
			for _, pair := range strings.Split(remaining[1:end], ",") {
				parts := strings.SplitN(pair, "=", 2)
				if len(parts) == 2 {
					labels[strings.TrimSpace(parts[0])] = strings.Trim(parts[1], `"`)
				}
			}
			remaining = remaining[end+1:]
		} else if !strings.HasPrefix(remaining, " ") {
			// a longer metric name sharing the prefix
			continue
		}

		matched := true
		for k, v := range want {
			if labels[k] != v {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		var value float64
		if _, err := fmt.Sscanf(strings.TrimSpace(remaining), "%g", &value); err != nil {
			return 0, fmt.Errorf("parse value of %q: %w", metricName, err)
		}
		return value, nil
	}
	return 0, fmt.Errorf("metric %q not found", metricName)
}

// MetricValue scrapes the registry and returns one sample, or 0 when the
// series does not exist yet.
func MetricValue(t *testing.T, metricName string, labels map[string]string) float64 {
	t.Helper()
	v, err := ParseMetricValue(ScrapeMetrics(t), metricName, labels)
	if err != nil {
		return 0
	}
	return v
}

// AssertMetricIncremented asserts that a counter grew while fn ran.
func AssertMetricIncremented(t *testing.T, metricName string, labels map[string]string, fn func()) {
	t.Helper()
	before := MetricValue(t, metricName, labels)
	fn()
	after := MetricValue(t, metricName, labels)
	if after <= before {
		t.Errorf("metric %q %v did not increment: before=%v, after=%v", metricName, labels, before, after)
	}
}
