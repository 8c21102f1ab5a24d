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

// Package lifecycle owns the transaction state machine: admission of
// new transactions, status transitions, access control, and the
// listing queries built on top of them.
package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/event"
	"github.com/yordanove/hedera-transaction-tool-sub000/execution"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
	"github.com/yordanove/hedera-transaction-tool-sub000/scheduler"
	"github.com/yordanove/hedera-transaction-tool-sub000/signing"
)

var (
	ErrNotFound     = errors.New("transaction not found")
	ErrUnauthorized = errors.New(
		"you don't have permission to perform this action",
	)
	ErrInvalidState = errors.New(
		"operation not valid for current transaction status",
	)
	ErrExpired   = errors.New("transaction is expired")
	ErrOversize  = errors.New("transaction body too large")
	ErrDuplicate = errors.New(
		"transaction id already taken by an active transaction",
	)
	ErrInvalidSignature = errors.New("invalid creator signature")
)

// DefaultReminderLead is how long before valid-start a sign reminder
// fires when the creator does not specify a lead time
const DefaultReminderLead = 24 * time.Hour

// ServiceConfig wires the lifecycle service's collaborators. Executor
// and Scheduler may be nil, disabling execution hand-off and reminder
// scheduling respectively.
type ServiceConfig struct {
	Database     *database.Database
	EventBus     *event.EventBus
	Executor     execution.Executor
	Scheduler    scheduler.Scheduler
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Network      string
}

// Service is the transaction lifecycle owner
type Service struct {
	db      *database.Database
	bus     *event.EventBus
	exec    execution.Executor
	sched   scheduler.Scheduler
	logger  *slog.Logger
	metrics *serviceMetrics
	network string
}

type serviceMetrics struct {
	created  prometheus.Counter
	executed prometheus.Counter
	expired  prometheus.Counter
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Service{
		db:      cfg.Database,
		bus:     cfg.EventBus,
		exec:    cfg.Executor,
		sched:   cfg.Scheduler,
		logger:  logger.With("component", "lifecycle"),
		network: cfg.Network,
	}
	if cfg.PromRegistry != nil {
		s.metrics = &serviceMetrics{
			created: promauto.With(cfg.PromRegistry).NewCounter(
				prometheus.CounterOpts{
					Name: "txtool_transactions_created_total",
					Help: "total number of transactions admitted",
				},
			),
			executed: promauto.With(cfg.PromRegistry).NewCounter(
				prometheus.CounterOpts{
					Name: "txtool_transactions_executed_total",
					Help: "total number of transactions handed off for execution",
				},
			),
			expired: promauto.With(cfg.PromRegistry).NewCounter(
				prometheus.CounterOpts{
					Name: "txtool_transactions_expired_total",
					Help: "total number of transactions marked expired",
				},
			),
		}
	}
	return s
}

// VerifyAccess decides whether the user may see or act on the
// transaction. Terminal transactions are history, visible to anyone
// who can reach them. Otherwise access requires a concrete
// relationship: the user could ever matter as a signer, or is the
// creator, an observer, a recorded signer, or anywhere in the approver
// tree. The decision never reveals which relationship gated it.
func (s *Service) VerifyAccess(
	tx *models.Transaction,
	user *models.User,
) (bool, error) {
	if tx.Status.IsTerminal() {
		return true, nil
	}
	creatorKey := tx.CreatorKey
	if creatorKey == nil {
		var err error
		creatorKey, err = s.db.GetUserKey(tx.CreatorKeyID, nil)
		if err != nil {
			return false, err
		}
	}
	if creatorKey != nil && creatorKey.UserID == user.ID {
		return true, nil
	}
	for _, observer := range tx.Observers {
		if observer.UserID == user.ID {
			return true, nil
		}
	}
	for _, signer := range tx.Signers {
		if signer.UserID == user.ID {
			return true, nil
		}
	}
	if len(user.Keys) > 0 {
		decoded, err := ledger.TransactionFromBytes(
			tx.TransactionBytes,
		)
		if err == nil {
			required := signing.KeysRequiredToSign(
				decoded.Body.SigningKey,
				decoded.SignedBy(),
				user.Keys,
				true,
			)
			if len(required) > 0 {
				return true, nil
			}
		}
	}
	approvers, err := s.db.GetApproverTree(tx.ID, nil)
	if err != nil {
		return false, err
	}
	for _, row := range approvers {
		if row.UserID != nil && *row.UserID == user.ID {
			return true, nil
		}
	}
	return false, nil
}

// GetTransactionWithVerifiedAccess loads a transaction together with
// its approver tree and enforces access. Absence and denial both
// surface as not-found so existence is not leaked to callers probing
// ids.
func (s *Service) GetTransactionWithVerifiedAccess(
	id uint,
	user *models.User,
) (*models.Transaction, []database.ApproverRow, error) {
	tx, err := s.db.GetTransaction(id, nil)
	if err != nil {
		return nil, nil, err
	}
	if tx == nil {
		return nil, nil, ErrNotFound
	}
	approvers, err := s.db.GetApproverTree(id, nil)
	if err != nil {
		return nil, nil, err
	}
	hasAccess, err := s.VerifyAccess(tx, user)
	if err != nil {
		return nil, nil, err
	}
	if !hasAccess {
		return nil, nil, ErrNotFound
	}
	return tx, approvers, nil
}

// VerifyCreator reports whether the user owns the key that created the
// transaction
func (s *Service) VerifyCreator(
	tx *models.Transaction,
	user *models.User,
) (bool, error) {
	creatorKey := tx.CreatorKey
	if creatorKey == nil {
		var err error
		creatorKey, err = s.db.GetUserKey(tx.CreatorKeyID, nil)
		if err != nil {
			return false, err
		}
	}
	return creatorKey != nil && creatorKey.UserID == user.ID, nil
}

// getCreatorOwned loads a transaction scoped to creator-only access
func (s *Service) getCreatorOwned(
	id uint,
	user *models.User,
) (*models.Transaction, error) {
	tx, err := s.db.GetTransaction(id, nil)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}
	owned, err := s.VerifyCreator(tx, user)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrUnauthorized
	}
	return tx, nil
}

// ReevaluateStatus advances any of the given transactions whose
// signing requirements are now satisfied, and hands off non-manual
// ones whose valid-start has passed for execution. Called after
// signature merges; individual failures are logged, not surfaced, so
// a re-evaluation problem never fails the signature import that
// triggered it.
func (s *Service) ReevaluateStatus(ctx context.Context, ids []uint) {
	transactions, err := s.db.GetTransactionsByIDs(ids, nil)
	if err != nil {
		s.logger.Warn(
			"failed to load transactions for re-evaluation",
			"err", err,
		)
		return
	}
	now := time.Now()
	for i := range transactions {
		tx := &transactions[i]
		if err := s.reevaluateOne(ctx, tx, now); err != nil {
			s.logger.Warn(
				"status re-evaluation failed",
				"transaction_id", tx.TransactionID,
				"err", err,
			)
		}
	}
}

func (s *Service) reevaluateOne(
	ctx context.Context,
	tx *models.Transaction,
	now time.Time,
) error {
	if tx.Status != models.StatusWaitingForSignatures &&
		tx.Status != models.StatusWaitingForExecution {
		return nil
	}
	decoded, err := ledger.TransactionFromBytes(tx.TransactionBytes)
	if err != nil {
		return err
	}
	if !signing.IsSatisfied(
		decoded.Body.SigningKey,
		decoded.SignedBy(),
	) {
		return nil
	}
	if tx.Status == models.StatusWaitingForSignatures {
		if err := s.db.UpdateTransactionStatus(
			tx.ID,
			models.StatusWaitingForExecution,
			nil,
		); err != nil {
			return err
		}
		tx.Status = models.StatusWaitingForExecution
		s.publishStatusUpdate(tx)
	}
	if tx.IsManual || s.exec == nil {
		return nil
	}
	if decoded.ValidStart().After(now) {
		return nil
	}
	if s.metrics != nil {
		s.metrics.executed.Inc()
	}
	return s.exec.ExecuteTransaction(ctx, tx)
}

func (s *Service) publishStatusUpdate(tx *models.Transaction) {
	s.publishStatusUpdateBatch([]event.UpdateEntry{{
		EntityID:      tx.ID,
		TransactionID: tx.TransactionID,
		Network:       tx.Network,
	}})
}

func (s *Service) publishStatusUpdateBatch(entries []event.UpdateEntry) {
	if s.bus == nil || len(entries) == 0 {
		return
	}
	s.bus.PublishAsync(
		event.TransactionStatusUpdateEventType,
		event.NewEvent(
			event.TransactionStatusUpdateEventType,
			event.TransactionStatusUpdateEvent{Entries: entries},
		),
	)
}

func (s *Service) publishUpdate(entries []event.UpdateEntry) {
	if s.bus == nil {
		return
	}
	s.bus.PublishAsync(
		event.TransactionUpdateEventType,
		event.NewEvent(
			event.TransactionUpdateEventType,
			event.TransactionUpdateEvent{Entries: entries},
		),
	)
}
