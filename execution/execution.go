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

// Package execution defines the collaborator that submits a
// sufficiently-signed transaction to the ledger network and records
// the outcome.
package execution

import (
	"context"
	"io"
	"log/slog"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
)

// Executor submits a transaction for execution against the network
type Executor interface {
	ExecuteTransaction(
		ctx context.Context,
		tx *models.Transaction,
	) error
}

// Submitter is an Executor that hands the transaction bytes to a
// network submit function and records the EXECUTED or FAILED outcome
type Submitter struct {
	db     *database.Database
	logger *slog.Logger
	// submit sends the signed bytes to the network for the named
	// network; nil means record success without submission (used by
	// isolated deployments and tests)
	submit func(ctx context.Context, network string, txBytes []byte) error
}

func NewSubmitter(
	db *database.Database,
	submit func(ctx context.Context, network string, txBytes []byte) error,
	logger *slog.Logger,
) *Submitter {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Submitter{
		db:     db,
		logger: logger.With("component", "execution"),
		submit: submit,
	}
}

func (s *Submitter) ExecuteTransaction(
	ctx context.Context,
	tx *models.Transaction,
) error {
	var submitErr error
	if s.submit != nil {
		submitErr = s.submit(ctx, tx.Network, tx.TransactionBytes)
	}
	status := models.StatusExecuted
	if submitErr != nil {
		status = models.StatusFailed
		s.logger.Warn(
			"transaction submission failed",
			"transaction_id", tx.TransactionID,
			"err", submitErr,
		)
	}
	if err := s.db.UpdateTransactionStatus(
		tx.ID,
		status,
		nil,
	); err != nil {
		return err
	}
	return submitErr
}
