package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/contentsquare/atomiccell/config"
	"github.com/contentsquare/atomiccell/internal/report"
	"github.com/contentsquare/atomiccell/internal/stress"
	"github.com/contentsquare/atomiccell/log"
	"github.com/contentsquare/atomiccell/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	configFile = flag.String("config", "testdata/default.yml", "Stress configuration filename")
	serve      = flag.Bool("serve", false, "Keep serving /metrics after all scenarios ran, until SIGINT or SIGTERM")
)

var allowedNetworksMetrics atomic.Value

func main() {
	flag.Parse()

	log.Infof("Loading config: %s", *configFile)
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("error while loading config: %s", err)
	}
	log.Infof("Loading config %q: successful", *configFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchSignals(cancel)

	if err := registerMetrics(prometheus.DefaultRegisterer, cfg.Metrics.Namespace); err != nil {
		log.Fatalf("cannot register metrics: %s", err)
	}
	if len(cfg.Metrics.ListenAddr) != 0 {
		go serveMetrics(cfg.Metrics)
	}

	exec := task.NewBoundedExecutor(cfg.Executor)
	runner, err := stress.NewRunner(exec, cfg.Stress, cfg.Executor.MaxInFlight)
	if err != nil {
		log.Fatalf("invalid stress configuration: %s", err)
	}
	reporter, err := report.New(ctx, cfg.Report)
	if err != nil {
		log.Fatalf("cannot set up reporting: %s", err)
	}
	defer reporter.Close()

	status := fmt.Sprintf("running %d scenarios with %d workers", len(cfg.Stress.Scenarios), cfg.Stress.Workers)
	if ok, err := sdNotifyReady(status); err != nil {
		log.Errorf("SdNotify error: %s", err)
	} else {
		log.Debugf("SdNotify status: %t", ok)
	}

	failed := runAll(ctx, runner, reporter)
	exec.Wait()
	stats := exec.Stats()
	log.Infof("executor: %d submitted, %d rejected, %d executed", stats.Submitted, stats.Rejected, stats.Executed)

	if *serve && ctx.Err() == nil {
		log.Infof("All scenarios ran. Serving metrics until stopped")
		<-ctx.Done()
	}

	if failed > 0 {
		reporter.Close()
		log.Fatalf("%d scenarios failed", failed)
	}
}

// runAll runs every scenario and reports it. It returns the number of
// failed scenarios. Reporting failures are logged by the reporter and do
// not fail the run.
func runAll(ctx context.Context, runner *stress.Runner, reporter report.Reporter) int {
	failed := 0
	for _, res := range runner.Run(ctx) {
		if res.Err != nil {
			failed++
		}
		rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = reporter.Report(rctx, res)
		cancel()
	}
	return failed
}

func watchSignals(stop context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for s := range c {
			switch s {
			case syscall.SIGHUP:
				log.Infof("SIGHUP received. Going to reload config %s ...", *configFile)
				if _, err := loadConfig(); err != nil {
					log.Errorf("error while reloading config: %s", err)
					continue
				}
				log.Infof("Reloading config %s: successful", *configFile)
			default:
				log.Infof("%s received. Stopping ...", s)
				stop()
			}
		}
	}()
}

// loadConfig reads the config file and applies the settings that may change
// while running: debug logging and the networks allowed to read metrics.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		return nil, fmt.Errorf("can't load config %q: %w", *configFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", *configFile, err)
	}
	allowedNetworksMetrics.Store(&cfg.Metrics.AllowedNetworks)
	log.SetDebug(cfg.LogDebug)
	log.Infof("Loaded config:\n%s", cfg)
	return cfg, nil
}

func serveMetrics(cfg config.Metrics) {
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("cannot listen for %q: %s", cfg.ListenAddr, err)
	}
	log.Infof("Serving metrics on %q", cfg.ListenAddr)
	s := &http.Server{
		Handler:      http.HandlerFunc(serveHTTP),
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		IdleTimeout:  time.Minute * 10,
		ErrorLog:     log.ErrorLogger,
	}
	if err := s.Serve(ln); err != nil {
		log.Fatalf("metrics server error on %q: %s", cfg.ListenAddr, err)
	}
}

var promHandler = promhttp.Handler()

func serveHTTP(rw http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/favicon.ico":
	case "/metrics":
		an := allowedNetworksMetrics.Load().(*config.Networks)
		if !an.Contains(r.RemoteAddr) {
			rw.Header().Set("Connection", "close")
			respondWith(rw, fmt.Errorf("connections to /metrics are not allowed from %s", r.RemoteAddr), http.StatusForbidden)
			return
		}
		promHandler.ServeHTTP(rw, r)
	default:
		badRequest.Inc()
		respondWith(rw, fmt.Errorf("unsupported path: %s", r.URL.Path), http.StatusBadRequest)
	}
}
