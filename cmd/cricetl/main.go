// Command cricetl converts a directory of per-match cricket JSON documents
// into four relational datasets (matches, innings, deliveries, wickets) and
// bulk-loads them into a configured store, optionally exporting them as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cricetl/internal/config"
	"cricetl/internal/metrics"
	"cricetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	_ "cricetl/internal/storage/all"
)

// main loads the run config, optionally initializes a metrics backend, and
// executes the run.
func main() {
	var (
		cfgPath           string
		inputDir          string
		csvDir            string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/run.json", "run config JSON path")
	flag.StringVar(&inputDir, "input", "", "override source.dir from the config")
	flag.StringVar(&csvDir, "csv-out", "", "override export.csv_dir from the config")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	run, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if inputDir != "" {
		run.Source.Dir = inputDir
	}
	if csvDir != "" {
		run.Export.CSVDir = csvDir
	}

	issues := config.Validate(run)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		jobName := run.Job
		if jobName == "" {
			jobName = "cricetl"
		}

		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, jobName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("run: source=%s storage=%s csv_out=%s",
			run.Source.Dir, run.Storage.Kind, run.Export.CSVDir)
	}

	if err := execute(ctx, run, *verbose); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
