// Copyright 2025 The txtool authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	txtool "github.com/yordanove/hedera-transaction-tool-sub000"
	"github.com/yordanove/hedera-transaction-tool-sub000/internal/config"
)

func serveRun(_ *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun()

	shutdownTimeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil {
		slog.Error(
			"invalid shutdown timeout: " + err.Error(),
		)
		os.Exit(1)
	}
	expiryInterval, err := time.ParseDuration(cfg.ExpiryInterval)
	if err != nil {
		slog.Error(
			"invalid expiry interval: " + err.Error(),
		)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	startMetricsListener(cfg, promRegistry, logger)

	coordinator, err := txtool.New(txtool.NewConfig(
		txtool.WithLogger(logger),
		txtool.WithPrometheusRegistry(promRegistry),
		txtool.WithDataDir(cfg.DatabasePath),
		txtool.WithPostgresDsn(cfg.PostgresDsn),
		txtool.WithListenAddress(
			fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port),
		),
		txtool.WithNetwork(cfg.Network),
		txtool.WithExpiryInterval(expiryInterval),
		txtool.WithShutdownTimeout(shutdownTimeout),
		txtool.WithTracing(cfg.Tracing),
	))
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if err := coordinator.Run(ctx); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// startMetricsListener serves prometheus metrics on the private
// metrics address
func startMetricsListener(
	cfg *config.Config,
	promRegistry *prometheus.Registry,
	logger *slog.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle(
		"GET /metrics",
		promhttp.HandlerFor(
			promRegistry,
			promhttp.HandlerOpts{},
		),
	)
	addr := fmt.Sprintf("%s:%d", cfg.MetricsBindAddr, cfg.MetricsPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info(
			"metrics listener started on " + addr,
		)
		if err := server.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				"metrics listener error",
				"error", err,
			)
		}
	}()
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the signing coordinator",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			serveRun(cmd, args, cfg)
		},
	}
}
