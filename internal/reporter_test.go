// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package internal

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cloudy-native/whambam.dev/api"
)

func sampleReport() api.RunReport {
	return api.RunReport{
		URL:            "http://somewhere.com/xyz",
		Method:         "GET",
		TotalTime:      1500 * time.Millisecond,
		Completed:      42,
		Errors:         2,
		ErrorPct:       4.761904,
		RequestsPerSec: 28.0,
		BytesSent:      4200,
		BytesReceived:  43008,
		MinLatency:     0.5,
		MaxLatency:     2300,
		P50:            12.345,
		P90:            80,
		P95:            120,
		P99:            900,
		StatusDist: []api.StatusCount{
			{Status: 200, Count: 40, Percent: 95.238095},
			{Status: 500, Count: 2, Percent: 4.761904},
		},
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport()); err != nil {
		t.Fatalf("unexpected error writing report: %s", err)
	}
	out := buf.String()

	expected := []string{
		"URL: http://somewhere.com/xyz",
		"HTTP Method: GET",
		"Total Requests: 42",
		"Total Time: 1.50s",
		"Average Throughput: 28.00 req/s",
		"Error Count: 2 (4.76%)",
		"Total Bytes Sent: 4.10 KB",
		"Total Bytes Received: 42.00 KB",
		"Min: 500 µs",
		"Max: 2.300 s",
		"P50: 12.345 ms",
		"P90: 80 ms",
		"HTTP 200: 40 (95.24%)",
		"HTTP 500: 2 (4.76%)",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	// Status codes come out in ascending order.
	if strings.Index(out, "HTTP 200") > strings.Index(out, "HTTP 500") {
		t.Error("status codes out of order")
	}
}

func TestWriteHeyReport(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeyReport(&buf, sampleReport()); err != nil {
		t.Fatalf("unexpected error writing report: %s", err)
	}
	out := buf.String()

	expected := []string{
		"Summary:",
		"Total:\t1.50 secs",
		"Slowest:\t2.3000 secs",
		"Fastest:\t0.0005 secs",
		"Average:\t0.0123 secs",
		"Requests/sec:\t28.00",
		"Transfer/sec:",
		"Latency distribution:",
		"50% in 0.0123 secs",
		"99% in 0.9000 secs",
		"Status code distribution:",
		"[200] 40 responses (95.24%)",
		"[500] 2 responses (4.76%)",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("hey report missing %q:\n%s", want, out)
		}
	}
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		millis   float64
		expected string
	}{
		{0.5, "500 µs"},
		{0.1234, "123.400 µs"},
		{1, "1 ms"},
		{12.345, "12.345 ms"},
		{999.5, "999.500 ms"},
		{1000, "1 s"},
		{2300, "2.300 s"},
		{0, "0 µs"},
	}
	for _, tc := range tests {
		if got := formatLatency(tc.millis); got != tc.expected {
			t.Errorf("formatLatency(%v): expected %q, got %q", tc.millis, tc.expected, got)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.00 KB"},
		{3 * 1024 * 1024, "3.00 MB"},
		{5 * 1024 * 1024 * 1024, "5.00 GB"},
	}
	for _, tc := range tests {
		if got := formatBytes(tc.n); got != tc.expected {
			t.Errorf("formatBytes(%d): expected %q, got %q", tc.n, tc.expected, got)
		}
	}
}
