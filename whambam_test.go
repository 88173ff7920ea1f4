// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudy-native/whambam.dev/api"
)

func defaultOptions() cliOptions {
	return cliOptions{
		requests:    200,
		concurrent:  50,
		durationStr: "0",
		timeoutSecs: 20,
		method:      "GET",
		contentType: "text/html",
		output:      "ui",
	}
}

func TestBuildConfig(t *testing.T) {
	opts := defaultOptions()
	config, err := buildConfig(opts, "http://somewhere.com/xyz")
	if err != nil {
		t.Fatalf("unexpected error building config: %s", err)
	}
	if config.URL != "http://somewhere.com/xyz" || config.Method != "GET" {
		t.Errorf("unexpected target: %s %s", config.Method, config.URL)
	}
	if config.NumRequests != 200 || config.Concurrency != 50 {
		t.Errorf("unexpected bounds: n=%d c=%d", config.NumRequests, config.Concurrency)
	}
	if config.Timeout != 20*time.Second {
		t.Errorf("unexpected timeout: %v", config.Timeout)
	}
	if len(config.Headers) != 0 {
		t.Errorf("expected no headers without a body, got %+v", config.Headers)
	}
}

func TestBuildConfigHeaders(t *testing.T) {
	opts := defaultOptions()
	opts.headers = []string{"X-One: 1", "not a header", "X-Two: 2"}
	opts.accept = "application/json"
	opts.body = `{"a":1}`
	opts.method = "post"

	config, err := buildConfig(opts, "http://somewhere.com")
	if err != nil {
		t.Fatalf("unexpected error building config: %s", err)
	}
	if config.Method != "POST" {
		t.Errorf("expected method POST, got %s", config.Method)
	}

	// Valid headers survive in order, the Accept flag follows them, and
	// Content-Type is attached because a body is present.
	expected := []api.Header{
		{Name: "X-One", Value: "1"},
		{Name: "X-Two", Value: "2"},
		{Name: "Accept", Value: "application/json"},
		{Name: "Content-Type", Value: "text/html"},
	}
	if len(config.Headers) != len(expected) {
		t.Fatalf("expected %d headers, got %+v", len(expected), config.Headers)
	}
	for i, h := range expected {
		if config.Headers[i] != h {
			t.Errorf("header %d: expected %+v, got %+v", i, h, config.Headers[i])
		}
	}
	if string(config.Body) != `{"a":1}` {
		t.Errorf("unexpected body %q", config.Body)
	}
}

func TestBuildConfigBodyFile(t *testing.T) {
	bodyFile := filepath.Join(t.TempDir(), "body.txt")
	if err := os.WriteFile(bodyFile, []byte("file body"), 0o600); err != nil {
		t.Fatalf("unexpected error writing body file: %s", err)
	}

	opts := defaultOptions()
	opts.bodyFile = bodyFile
	config, err := buildConfig(opts, "http://somewhere.com")
	if err != nil {
		t.Fatalf("unexpected error building config: %s", err)
	}
	if string(config.Body) != "file body" {
		t.Errorf("unexpected body %q", config.Body)
	}

	opts.bodyFile = filepath.Join(t.TempDir(), "missing.txt")
	if _, err := buildConfig(opts, "http://somewhere.com"); err == nil {
		t.Error("expected an error for an unreadable body file")
	}
}

func TestBuildConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cliOptions)
	}{
		{name: "bad duration", mutate: func(o *cliOptions) { o.durationStr = "soon" }},
		{name: "bad method", mutate: func(o *cliOptions) { o.method = "YANK" }},
		{name: "bad auth", mutate: func(o *cliOptions) { o.auth = "nopassword" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := defaultOptions()
			tc.mutate(&opts)
			if _, err := buildConfig(opts, "http://somewhere.com"); err == nil {
				t.Error("expected a configuration error")
			}
		})
	}
}

func TestBuildConfigAuth(t *testing.T) {
	opts := defaultOptions()
	opts.auth = "user:s3cret"
	config, err := buildConfig(opts, "http://somewhere.com")
	if err != nil {
		t.Fatalf("unexpected error building config: %s", err)
	}
	if !config.HasBasicAuth || config.BasicAuthUser != "user" || config.BasicAuthPass != "s3cret" {
		t.Errorf("unexpected auth: %+v", config)
	}
}
