package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tetriq/client"
	"tetriq/config"
	"tetriq/logger"
	"tetriq/transport"
)

// tetriq-client: connects to a server and plays with the headless display.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tetriq-client:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	flag.StringVar(&cfg.ServerURL, "url", cfg.ServerURL, "server websocket url")
	flag.BoolVar(&cfg.Autoplay, "autoplay", cfg.Autoplay, "play random moves")
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

	host, peer, err := transport.Connect(ctx, cfg.ServerURL, transport.Config{
		MaxIncomingBandwidth: cfg.MaxIncomingBandwidth,
		MaxOutgoingBandwidth: cfg.MaxOutgoingBandwidth,
		HandshakeTimeout:     cfg.ServerTimeout,
	})
	if err != nil {
		logger.Log.Errorf("failed to connect to the server: %v", err)
		return err
	}
	defer host.Close()
	logger.Log.Infof("connected to the server: %s", cfg.ServerURL)

	display := client.NewHeadlessDisplay(cfg.Autoplay, cfg.AutoplaySeed)
	err = client.New(host, peer, display, 0).Run(ctx)
	if errors.Is(err, client.ErrDisconnected) {
		logger.Log.Info("server closed the session")
		return nil
	}
	return err
}
