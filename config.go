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

package txtool

import (
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultListenAddress  = ":8080"
	DefaultNetwork        = "testnet"
	DefaultExpiryInterval = time.Minute
)

type Config struct {
	logger          *slog.Logger
	promRegistry    prometheus.Registerer
	dataDir         string
	postgresDsn     string
	listenAddress   string
	network         string
	expiryInterval  time.Duration
	shutdownTimeout time.Duration
	tracing         bool
}

type ConfigOptionFunc func(*Config)

// NewConfig creates a new coordinator config with default values
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		logger: slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		),
		listenAddress:   DefaultListenAddress,
		network:         DefaultNetwork,
		expiryInterval:  DefaultExpiryInterval,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies the prometheus registry for metrics
func WithPrometheusRegistry(
	registry prometheus.Registerer,
) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the on-disk SQLite location. Empty uses an
// in-memory database unless a Postgres DSN is set.
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithPostgresDsn specifies a Postgres connection string, taking
// precedence over the data dir
func WithPostgresDsn(dsn string) ConfigOptionFunc {
	return func(c *Config) {
		c.postgresDsn = dsn
	}
}

// WithListenAddress specifies the API listen address
func WithListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.listenAddress = address
	}
}

// WithNetwork specifies the target ledger network
func WithNetwork(network string) ConfigOptionFunc {
	return func(c *Config) {
		c.network = network
	}
}

// WithExpiryInterval specifies how often expired transactions are
// swept
func WithExpiryInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.expiryInterval = interval
	}
}

// WithShutdownTimeout specifies the graceful shutdown timeout
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithTracing enables OpenTelemetry tracing on database queries
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}
