/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/frameclock/reftrack/clock"
	"github.com/frameclock/reftrack/logfile"
	"github.com/frameclock/reftrack/metrics"
	"github.com/frameclock/reftrack/notify"
	"github.com/frameclock/reftrack/reftrack"
)

func main() {
	var (
		cfgPath        string
		logDir         string
		monitoringPort int
		verbose        bool
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "reftrackd - chrony-style reference tracking core\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&cfgPath, "cfg", "/etc/reftrackd.yaml", "Path to config")
	flag.StringVar(&logDir, "logdir", "/var/log/reftrackd", "Directory for tracking.log")
	flag.IntVar(&monitoringPort, "monitoringport", 9124, "Port to serve /metrics on")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")
	flag.Parse()

	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := reftrack.ReadConfig(cfgPath)
	if err != nil {
		log.Fatalf("reading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	sysClock := clock.NewSystemClock()
	sched := clock.NewTimerScheduler()
	logs := logfile.New(logDir)
	defer logs.Close()

	var mailer reftrack.Mailer
	if cfg.MailerProgram != "" {
		mailer = notify.NewExecMailer(cfg.MailerProgram, time.Minute)
	}

	tracker := reftrack.New(cfg, sysClock, sched, logs, mailer)
	if err := tracker.Initialise(); err != nil {
		log.Fatalf("initialising tracker: %v", err)
	}
	defer tracker.Finalise()

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.New("reftrackd", tracker))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: fmt.Sprintf(":%d", monitoringPort), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("monitoring server stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}
