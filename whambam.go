// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// whambam drives a configurable volume of HTTP(S) requests at a target
// URL and reports throughput, latency distribution, and status-code
// breakdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cloudy-native/whambam.dev/api"
	"github.com/cloudy-native/whambam.dev/internal"
)

type cliOptions struct {
	requests           int
	concurrent         int
	durationStr        string
	timeoutSecs        int
	rateLimit          float64
	method             string
	accept             string
	auth               string
	body               string
	bodyFile           string
	headers            []string
	contentType        string
	proxy              string
	disableCompression bool
	disableKeepAlive   bool
	disableRedirects   bool
	output             string
	logLevel           int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:           "whambam <url>",
		Short:         "Test the throughput of an HTTP(S) endpoint",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*opts, args[0])
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.requests, "requests", "n", 200, "total number of requests to send (0 for unlimited)")
	f.IntVarP(&opts.concurrent, "concurrent", "c", 50, "number of concurrent connections")
	f.StringVarP(&opts.durationStr, "duration", "z", "0", "run duration such as 10s, 3m or 2h; overrides -n")
	f.IntVarP(&opts.timeoutSecs, "timeout", "t", 20, "per-request timeout in seconds (0 for none)")
	f.Float64VarP(&opts.rateLimit, "rate-limit", "q", 0, "per-worker rate limit in requests per second (0 for none)")
	f.StringVarP(&opts.method, "method", "m", "GET", "HTTP method (GET, POST, PUT, DELETE, HEAD, OPTIONS)")
	f.StringVarP(&opts.accept, "accept", "A", "", "Accept header")
	f.StringVarP(&opts.auth, "auth", "a", "", "basic authentication as username:password")
	f.StringVarP(&opts.body, "body", "d", "", "request body")
	f.StringVarP(&opts.bodyFile, "body-file", "D", "", "file containing the request body")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, `custom header as "Name: Value"; repeatable`)
	f.StringVarP(&opts.contentType, "content-type", "T", "text/html", "Content-Type header for requests with a body")
	f.StringVarP(&opts.proxy, "proxy", "x", "", "HTTP proxy as host:port")
	f.BoolVar(&opts.disableCompression, "disable-compression", false, "do not advertise compressed responses")
	f.BoolVar(&opts.disableKeepAlive, "disable-keepalive", false, "open a new TCP connection per request")
	f.BoolVar(&opts.disableRedirects, "disable-redirects", false, "do not follow 3xx responses")
	f.StringVarP(&opts.output, "output", "o", "ui", "output mode, 'ui' or 'hey'")
	f.IntVar(&opts.logLevel, "loglevel", int(zerolog.WarnLevel), "log level, 0 for debug, 1 info, 2 warn, ...")
	return cmd
}

func run(opts cliOptions, target string) error {
	zerolog.SetGlobalLevel(zerolog.Level(opts.logLevel))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli})

	if opts.output != "ui" && opts.output != "hey" {
		return fmt.Errorf("invalid output mode %q, must be 'ui' or 'hey'", opts.output)
	}

	config, err := buildConfig(opts, target)
	if err != nil {
		return err
	}

	scheduler, err := internal.NewScheduler(config)
	if err != nil {
		return err
	}
	config = scheduler.Config()
	log.Info().Str("url", config.URL).Int("concurrent", config.Concurrency).Msg("whambam starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		signal.Stop(sigs)
		log.Debug().Msg("whambam: interrupt caught")
		cancel()
	}()

	type runResult struct {
		report api.RunReport
		err    error
	}
	resultC := make(chan runResult, 1)
	doneC := make(chan struct{})
	go func() {
		report, err := scheduler.Run(ctx)
		resultC <- runResult{report, err}
		close(doneC)
	}()

	if opts.output == "ui" {
		internal.ShowProgress(scheduler.Snapshot, config.NumRequests, config.Duration, doneC)
	}

	result := <-resultC
	if result.err != nil {
		return result.err
	}

	log.Info().Msg("whambam: DONE")
	if opts.output == "hey" {
		return internal.WriteHeyReport(os.Stdout, result.report)
	}
	return internal.WriteReport(os.Stdout, result.report)
}

// buildConfig assembles and vets a TestConfig from the flag values.
// Malformed repeatable headers are warned about and skipped; everything
// else invalid is a hard error.
func buildConfig(opts cliOptions, target string) (api.TestConfig, error) {
	config := api.TestConfig{
		URL:                target,
		NumRequests:        opts.requests,
		Concurrency:        opts.concurrent,
		Timeout:            time.Duration(opts.timeoutSecs) * time.Second,
		RateLimit:          opts.rateLimit,
		Proxy:              opts.proxy,
		DisableCompression: opts.disableCompression,
		DisableKeepAlive:   opts.disableKeepAlive,
		DisableRedirects:   opts.disableRedirects,
	}

	method, err := api.ParseMethod(opts.method)
	if err != nil {
		return api.TestConfig{}, err
	}
	config.Method = method

	config.Duration, err = api.ParseRunDuration(opts.durationStr)
	if err != nil {
		return api.TestConfig{}, err
	}
	if config.Duration > 0 && opts.requests > 0 {
		log.Info().Msg("duration-based run, ignoring request count (-n)")
	}

	for _, h := range opts.headers {
		header, err := api.ParseHeader(h)
		if err != nil {
			log.Warn().Str("header", h).Msg("ignoring invalid header, expected 'Name: Value'")
			continue
		}
		config.Headers = append(config.Headers, header)
	}
	if opts.accept != "" {
		config.Headers = append(config.Headers, api.Header{Name: "Accept", Value: opts.accept})
	}

	config.Body, err = api.LoadBody(opts.body, opts.bodyFile)
	if err != nil {
		return api.TestConfig{}, err
	}
	if len(config.Body) > 0 {
		config.Headers = append(config.Headers, api.Header{Name: "Content-Type", Value: opts.contentType})
	}

	if opts.auth != "" {
		user, pass, err := api.ParseBasicAuth(opts.auth)
		if err != nil {
			return api.TestConfig{}, err
		}
		config.BasicAuthUser, config.BasicAuthPass, config.HasBasicAuth = user, pass, true
	}

	return config, nil
}
