package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"tetriq/config"
	"tetriq/logger"
	"tetriq/server"
	"tetriq/transport"
)

// tetriq-server: game listener on /ws, optional admin console, fixed-rate loop.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tetriq-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	flag.StringVar(&cfg.ListenAddress, "host", cfg.ListenAddress, "listen address")
	flag.IntVar(&cfg.ListenPort, "port", cfg.ListenPort, "listen port")
	flag.BoolVar(&cfg.AdminEnabled, "admin", cfg.AdminEnabled, "enable the admin console")
	flag.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "admin console address")
	flag.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file, empty for stderr")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.LogFile, cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	host, err := transport.NewHost(transport.Config{
		MaxPeers:             cfg.MaxClients,
		MaxIncomingBandwidth: cfg.MaxIncomingBandwidth,
		MaxOutgoingBandwidth: cfg.MaxOutgoingBandwidth,
	})
	if err != nil {
		return err
	}
	logger.Log.Debugf("host created: max clients %d, bandwidth in %d out %d",
		cfg.MaxClients, cfg.MaxIncomingBandwidth, cfg.MaxOutgoingBandwidth)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := server.NewRedisRecorder(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	srv, err := server.New(host, server.Options{
		GameWidth:             cfg.GameWidth,
		GameHeight:            cfg.GameHeight,
		Period:                cfg.Period(),
		MaxProtocolViolations: cfg.MaxProtocolViolations,
		Metrics:               server.NewMetrics(reg),
		Recorder:              recorder,
	})
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Handle("/ws", host)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	servers := []*http.Server{{Addr: cfg.Addr(), Handler: r}}
	if cfg.AdminEnabled {
		servers = append(servers, &http.Server{Addr: cfg.AdminAddr, Handler: server.NewAdminRouter(srv, reg)})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return recorder.Run(gctx) })
	for _, hs := range servers {
		g.Go(func() error {
			logger.Log.Infof("listening on %s", hs.Addr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", hs.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		for _, hs := range servers {
			err = multierr.Append(err, hs.Shutdown(shutdownCtx))
		}
		return multierr.Append(err, host.Close())
	})
	return g.Wait()
}
