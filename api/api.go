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

// Package api exposes the coordinator over a REST surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/yordanove/hedera-transaction-tool-sub000/approvals"
	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/groups"
	"github.com/yordanove/hedera-transaction-tool-sub000/lifecycle"
	"github.com/yordanove/hedera-transaction-tool-sub000/signing"
)

// Config carries the API server's own settings
type Config struct {
	ListenAddress string
}

// Api is the REST API server
type Api struct {
	config     Config
	logger     *slog.Logger
	db         *database.Database
	txs        *lifecycle.Service
	merger     *signing.Merger
	groups     *groups.Service
	approvals  *approvals.Service
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new API server instance
func New(
	cfg Config,
	db *database.Database,
	txs *lifecycle.Service,
	merger *signing.Merger,
	grp *groups.Service,
	approvalSvc *approvals.Service,
	logger *slog.Logger,
) *Api {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	return &Api{
		config:    cfg,
		logger:    logger,
		db:        db,
		txs:       txs,
		merger:    merger,
		groups:    grp,
		approvals: approvalSvc,
	}
}

// Start starts the HTTP server in a background goroutine
func (a *Api) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc(
		"POST /api/v1/transactions",
		a.handleCreateTransaction,
	)
	mux.HandleFunc(
		"GET /api/v1/transactions",
		a.handleListTransactions,
	)
	mux.HandleFunc(
		"GET /api/v1/transactions/history",
		a.handleHistoryTransactions,
	)
	mux.HandleFunc(
		"GET /api/v1/transactions/sign",
		a.handleTransactionsToSign,
	)
	mux.HandleFunc(
		"GET /api/v1/transactions/approve",
		a.handleTransactionsToApprove,
	)
	mux.HandleFunc(
		"POST /api/v1/transactions/signatures",
		a.handleImportSignatures,
	)
	mux.HandleFunc(
		"GET /api/v1/transactions/{id}",
		a.handleGetTransaction,
	)
	mux.HandleFunc(
		"DELETE /api/v1/transactions/{id}",
		a.handleRemoveTransaction,
	)
	mux.HandleFunc(
		"POST /api/v1/transactions/{id}/cancel",
		a.handleCancelTransaction,
	)
	mux.HandleFunc(
		"POST /api/v1/transactions/{id}/archive",
		a.handleArchiveTransaction,
	)
	mux.HandleFunc(
		"POST /api/v1/transactions/{id}/execute",
		a.handleExecuteTransaction,
	)
	mux.HandleFunc(
		"POST /api/v1/transactions/{id}/approvers",
		a.handleCreateApprovers,
	)
	mux.HandleFunc(
		"POST /api/v1/transactions/{id}/approve",
		a.handleApproveTransaction,
	)
	mux.HandleFunc(
		"POST /api/v1/transactions/{id}/observers",
		a.handleCreateObserver,
	)
	mux.HandleFunc(
		"GET /api/v1/transactions/{id}/comments",
		a.handleGetComments,
	)
	mux.HandleFunc(
		"POST /api/v1/transactions/{id}/comments",
		a.handleCreateComment,
	)
	mux.HandleFunc(
		"POST /api/v1/transaction-groups",
		a.handleCreateGroup,
	)
	mux.HandleFunc(
		"GET /api/v1/transaction-groups/{id}",
		a.handleGetGroup,
	)
	mux.HandleFunc(
		"DELETE /api/v1/transaction-groups/{id}",
		a.handleRemoveGroup,
	)

	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.mu.Unlock()

	// Bind the listening socket first so port conflicts surface
	// immediately
	if err := a.startServer(server); err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"API listener started on " + a.config.ListenAddress,
	)

	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown API server on context "+
						"cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (a *Api) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()

	if srv != nil {
		a.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

func (a *Api) startServer(server *http.Server) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}
