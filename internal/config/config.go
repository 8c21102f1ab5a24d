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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "txtool.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	Network         string `yaml:"network"`
	DatabasePath    string `yaml:"databasePath"                            split_words:"true"`
	PostgresDsn     string `yaml:"postgresDsn"     envconfig:"TXTOOL_POSTGRES_DSN"`
	BindAddr        string `yaml:"bindAddr"                                split_words:"true"`
	MetricsBindAddr string `yaml:"metricsBindAddr"                         split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout"                         split_words:"true"`
	ExpiryInterval  string `yaml:"expiryInterval"                          split_words:"true"`
	Port            uint   `yaml:"port"`
	MetricsPort     uint   `yaml:"metricsPort"                             split_words:"true"`
	Tracing         bool   `yaml:"tracing"`
}

var globalConfig = &Config{
	Network:         "testnet",
	DatabasePath:    ".txtool",
	BindAddr:        "0.0.0.0",
	MetricsBindAddr: "127.0.0.1",
	Port:            8080,
	MetricsPort:     12798,
	ShutdownTimeout: DefaultShutdownTimeout,
	ExpiryInterval:  "1m",
}

// LoadConfig loads the config from a YAML file with environment
// variable overrides. An empty path falls back to
// ~/.txtool/txtool.yaml and then /etc/txtool/txtool.yaml.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(
				homeDir,
				".txtool",
				"txtool.yaml",
			)
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/txtool/txtool.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf(
				"error reading config file: %w",
				err,
			)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf(
				"error parsing config file: %w",
				err,
			)
		}
	}

	// Environment variables override file values
	if err := envconfig.Process("txtool", globalConfig); err != nil {
		return nil, fmt.Errorf(
			"error processing environment: %w",
			err,
		)
	}
	return globalConfig, nil
}

// GetConfig returns the global config
func GetConfig() *Config {
	return globalConfig
}
