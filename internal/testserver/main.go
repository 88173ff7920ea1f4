// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

// This is a stub HTTP server for exercising whambam locally. It serves a
// fixed-size body with a configurable status and delay so runs can be
// pointed at a predictable target.

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	help := flag.Bool("help", false, "prints usage info")
	port := flag.String("port", "8080", "port to listen on")
	status := flag.Int("status", http.StatusOK, "status code to return")
	delay := flag.Duration("delay", 0, "delay before responding, e.g. 50ms or 2s")
	size := flag.Int("size", 1024, "response body size in bytes")
	flag.Parse()

	usage := `usage:

testserver [-port <port> -status <code> -delay <duration> -size <bytes> -help]

Options:
  -help    Prints this message
  -port    Port to listen on, defaults to 8080
  -status  HTTP status to return, defaults to 200
  -delay   Delay before responding, defaults to 0
  -size    Response body size in bytes, defaults to 1024`

	if *help {
		fmt.Println(usage)
		return
	}
	if *size < 0 {
		fmt.Printf("size must not be negative:\n%s", usage)
		os.Exit(1)
	}

	body := bytes.Repeat([]byte("x"), *size)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if *delay > 0 {
			time.Sleep(*delay)
		}
		w.WriteHeader(*status)
		w.Write(body)
	})

	log.Printf("testserver listening on :%s, status %d, delay %s, body %d bytes",
		*port, *status, *delay, *size)
	if err := http.ListenAndServe(":"+*port, nil); err != nil {
		log.Fatal(err)
	}
}
