package main

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nimbusdb/raftdispatch/raft"
)

func main() {
	Execute()
}

var configPath string

var dispatchdCmd = &cobra.Command{
	Use:   "dispatchd",
	Short: "run a demonstration Raft leader log-dispatch core",
	RunE:  runDispatchd,
}

func init() {
	dispatchdCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML configuration file")
}

// Execute runs the dispatchd command.
func Execute() {
	if err := dispatchdCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDispatchd(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout)
	defer logger.Sync()

	member := newInMemoryMember(cfg, logger.With(zap.String("component", "member")))

	dispatcher, err := raft.NewLogDispatcher(member, cfg.raftConfig(),
		raft.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("construct log dispatcher: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(dispatcher.Metrics()...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcherDone := make(chan error, 1)
	go func() { dispatcherDone <- dispatcher.Run(ctx) }()

	httpServer := &nethttp.Server{
		Addr:    cfg.HTTPBindAddress,
		Handler: raft.NewDebugHandler(dispatcher, logger, reg),
	}
	httpDone := make(chan error, 1)
	go func() {
		logger.Info("serving debug endpoint", zap.String("addr", cfg.HTTPBindAddress))
		if err := httpServer.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			httpDone <- err
			return
		}
		httpDone <- nil
	}()

	stopProducer := make(chan struct{})
	go runLogProducer(dispatcher, member, logger, stopProducer)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, os.Interrupt)

	select {
	case <-sigs:
		logger.Info("received shutdown signal")
	case err := <-dispatcherDone:
		if err != nil {
			logger.Error("log dispatcher exited with error", zap.Error(err))
		}
	case err := <-httpDone:
		if err != nil {
			logger.Error("debug server exited with error", zap.Error(err))
		}
	}

	close(stopProducer)

	var shutdownErr error

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shut down debug server: %w", err))
	}

	dispatcherShutdownCtx, dispatcherCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dispatcherCancel()
	if err := dispatcher.Shutdown(dispatcherShutdownCtx); err != nil {
		shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shut down log dispatcher: %w", err))
	}

	return shutdownErr
}
