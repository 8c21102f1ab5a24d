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
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func resetGlobalConfig() {
	globalConfig = &Config{
		Network:         "testnet",
		DatabasePath:    ".txtool",
		BindAddr:        "0.0.0.0",
		MetricsBindAddr: "127.0.0.1",
		Port:            8080,
		MetricsPort:     12798,
		ShutdownTimeout: DefaultShutdownTimeout,
		ExpiryInterval:  "1m",
	}
}

func TestLoad_CompareFullStruct(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
network: "mainnet"
databasePath: ".txtool"
bindAddr: "127.0.0.1"
metricsBindAddr: "127.0.0.1"
port: 9000
metricsPort: 8088
shutdownTimeout: "10s"
expiryInterval: "30s"
tracing: true
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-txtool.yaml")

	err := os.WriteFile(tmpFile, []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	defer os.Remove(tmpFile)

	expected := &Config{
		Network:         "mainnet",
		DatabasePath:    ".txtool",
		BindAddr:        "127.0.0.1",
		MetricsBindAddr: "127.0.0.1",
		Port:            9000,
		MetricsPort:     8088,
		ShutdownTimeout: "10s",
		ExpiryInterval:  "30s",
		Tracing:         true,
	}

	actual, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !reflect.DeepEqual(actual, expected) {
		t.Errorf(
			"Loaded config does not match expected.\nActual: %+v\nExpected: %+v",
			actual,
			expected,
		)
	}
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	resetGlobalConfig()

	// Without config file
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// Expected is the original default values from globalConfig
	expected := &Config{
		Network:         "testnet",
		DatabasePath:    ".txtool",
		BindAddr:        "0.0.0.0",
		MetricsBindAddr: "127.0.0.1",
		Port:            8080,
		MetricsPort:     12798,
		ShutdownTimeout: DefaultShutdownTimeout,
		ExpiryInterval:  "1m",
	}

	if !reflect.DeepEqual(cfg, expected) {
		t.Errorf(
			"config mismatch without file:\nExpected: %+v\nGot:      %+v",
			expected,
			cfg,
		)
	}
}

func TestLoad_WithPostgresDsn(t *testing.T) {
	resetGlobalConfig()

	yamlContent := `
postgresDsn: "host=localhost user=txtool dbname=txtool"
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-postgres-dsn.yaml")

	err := os.WriteFile(tmpFile, []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	expected := "host=localhost user=txtool dbname=txtool"
	if cfg.PostgresDsn != expected {
		t.Errorf("expected PostgresDsn to be %s, got: %s", expected, cfg.PostgresDsn)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	resetGlobalConfig()

	yamlContent := `
network: "testnet"
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-env-override.yaml")

	err := os.WriteFile(tmpFile, []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("TXTOOL_NETWORK", "previewnet")

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Network != "previewnet" {
		t.Errorf("expected Network to be previewnet, got: %s", cfg.Network)
	}
}
