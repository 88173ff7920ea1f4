// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package internal

import (
	"fmt"
	"io"
	"math"
	"text/template"
	"time"

	"github.com/cloudy-native/whambam.dev/api"
)

var tmpltFuncs = template.FuncMap{
	"formatFloat":   formatFloat,
	"formatSeconds": formatSeconds,
	"formatSecs4":   formatSecs4,
	"formatLatency": formatLatency,
	"formatBytes":   formatBytes,
	"transferRate":  transferRate,
	"half":          func(ms float64) float64 { return ms / 2 },
	"twoThirds":     func(ms float64) float64 { return ms / 1.5 },
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

// formatSecs4 renders a millisecond latency as seconds to four decimals,
// the unit the hey format reports everything in.
func formatSecs4(millis float64) string {
	return fmt.Sprintf("%.4f", millis/1000.0)
}

// formatLatency renders a millisecond latency in a human-friendly unit,
// dropping the fraction when it is zero.
func formatLatency(millis float64) string {
	value, unit := millis, "ms"
	switch {
	case millis < 1.0:
		value, unit = millis*1000.0, "µs"
	case millis >= 1000.0:
		value, unit = millis/1000.0, "s"
	}
	if value == math.Trunc(value) {
		return fmt.Sprintf("%d %s", int64(value), unit)
	}
	return fmt.Sprintf("%.3f %s", value, unit)
}

// transferRate renders received bytes over the run duration as a
// per-second figure.
func transferRate(n int64, total time.Duration) string {
	secs := total.Seconds()
	if secs <= 0 {
		return "0 B"
	}
	return formatBytes(int64(float64(n) / secs))
}

func formatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/(1024*1024*1024))
	}
}

var runReportTmplt = `
===== Results =====
URL: {{ .URL }}
HTTP Method: {{ .Method }}
Total Requests: {{ .Completed }}
Total Time: {{ formatSeconds .TotalTime }}s
Average Throughput: {{ formatFloat .RequestsPerSec }} req/s
Error Count: {{ .Errors }} ({{ formatFloat .ErrorPct }}%)
Total Bytes Sent: {{ formatBytes .BytesSent }}
Total Bytes Received: {{ formatBytes .BytesReceived }}

Latency Statistics:
  Min: {{ formatLatency .MinLatency }}
  Max: {{ formatLatency .MaxLatency }}
  P50: {{ formatLatency .P50 }}
  P90: {{ formatLatency .P90 }}
  P95: {{ formatLatency .P95 }}
  P99: {{ formatLatency .P99 }}

Status Code Distribution:
{{- range .StatusDist }}
  HTTP {{ .Status }}: {{ .Count }} ({{ formatFloat .Percent }}%)
{{- end }}
`

// The hey-compatible report, in the classic output shape. Only p50, p90,
// p95 and p99 are tracked, so some rows reuse them: Average shows the
// median (p50), not the mean; the 10% and 25% rows are approximations
// derived from the median; and the 75% row shows p90.
var heyReportTmplt = `
Summary:
  Total:	{{ formatSeconds .TotalTime }} secs
  Slowest:	{{ formatSecs4 .MaxLatency }} secs
  Fastest:	{{ formatSecs4 .MinLatency }} secs
  Average:	{{ formatSecs4 .P50 }} secs
  Requests/sec:	{{ formatFloat .RequestsPerSec }}
{{- if gt .BytesReceived 0 }}
  Transfer/sec:	{{ transferRate .BytesReceived .TotalTime }}
{{- end }}

Latency distribution:
  10% in {{ formatSecs4 (half .P50) }} secs
  25% in {{ formatSecs4 (twoThirds .P50) }} secs
  50% in {{ formatSecs4 .P50 }} secs
  75% in {{ formatSecs4 .P90 }} secs
  90% in {{ formatSecs4 .P90 }} secs
  95% in {{ formatSecs4 .P95 }} secs
  99% in {{ formatSecs4 .P99 }} secs

Status code distribution:
{{- range .StatusDist }}
  [{{ .Status }}] {{ .Count }} responses ({{ formatFloat .Percent }}%)
{{- end }}
`

// WriteReport renders the standard final report.
func WriteReport(w io.Writer, report api.RunReport) error {
	return executeReport(w, "runReport", runReportTmplt, report)
}

// WriteHeyReport renders the hey-compatible final report.
func WriteHeyReport(w io.Writer, report api.RunReport) error {
	return executeReport(w, "heyReport", heyReportTmplt, report)
}

func executeReport(w io.Writer, name, text string, report api.RunReport) error {
	tmplt, err := template.New(name).Funcs(tmpltFuncs).Parse(text)
	if err != nil {
		return fmt.Errorf("error parsing %s template: %w", name, err)
	}
	if err := tmplt.Execute(w, report); err != nil {
		return fmt.Errorf("error executing %s template: %w", name, err)
	}
	return nil
}
