// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package internal

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cloudy-native/whambam.dev/api"
)

const (
	idleConnTimeout = 300 * time.Second
	tcpKeepAlive    = 60 * time.Second
	dialTimeout     = 30 * time.Second
)

// NewClient builds the shared HTTP client for a run. The connection pool
// is sized to hold two idle connections per worker so keep-alive reuse
// keeps up with the concurrency level. Per-request timeouts are applied
// by the workers, not here.
func NewClient(config api.TestConfig) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: tcpKeepAlive,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: 2 * config.Concurrency,
		MaxIdleConns:        0,
		IdleConnTimeout:     idleConnTimeout,
		DisableCompression:  config.DisableCompression,
		DisableKeepAlives:   config.DisableKeepAlive,
	}

	if config.Proxy != "" {
		proxyURL, err := url.Parse("http://" + config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q: %w", config.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{Transport: transport}
	if config.DisableRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client, nil
}
