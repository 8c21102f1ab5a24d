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

package signing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/event"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
)

// UpdateBatchSize bounds the number of rows touched by one conditional
// bulk update during signature import
const UpdateBatchSize = 500

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidState        = errors.New(
		"transaction is not waiting for signatures",
	)
	ErrExpired          = errors.New("transaction is expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// AccessVerifier gates signature submission on the submitting user's
// relationship to the transaction
type AccessVerifier interface {
	VerifyAccess(
		tx *models.Transaction,
		user *models.User,
	) (bool, error)
}

// StatusReevaluator is invoked after signatures land so the lifecycle
// owner can advance transactions whose requirements are now satisfied
type StatusReevaluator interface {
	ReevaluateStatus(ctx context.Context, ids []uint)
}

// ImportEntry is one signature map submission for one transaction
type ImportEntry struct {
	SignatureMap  ledger.SignatureMap
	TransactionID uint
}

// ImportResult reports the outcome for one input entry. Err is nil on
// success.
type ImportResult struct {
	Err error
	ID  uint
}

// MergerConfig wires the merge engine's collaborators
type MergerConfig struct {
	Database    *database.Database
	EventBus    *event.EventBus
	Access      AccessVerifier
	Reevaluator StatusReevaluator
	Logger      *slog.Logger
}

// Merger validates incoming signature maps against stored transactions
// and merges them into the transaction bytes
type Merger struct {
	db     *database.Database
	bus    *event.EventBus
	access AccessVerifier
	reeval StatusReevaluator
	logger *slog.Logger
}

func NewMerger(cfg MergerConfig) *Merger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Merger{
		db:     cfg.Database,
		bus:    cfg.EventBus,
		access: cfg.Access,
		reeval: cfg.Reevaluator,
		logger: logger.With("component", "signing"),
	}
}

// stagedUpdate is one validated merge waiting for batch persistence
type stagedUpdate struct {
	tx      *models.Transaction
	decoded *ledger.Transaction
	bytes   []byte
	merged  []ledger.SignaturePair
}

// ImportSignatures merges a batch of signature maps. One result entry
// is returned per input regardless of individual outcomes; a failing
// entry never aborts the rest of the batch.
func (m *Merger) ImportSignatures(
	ctx context.Context,
	entries []ImportEntry,
	user *models.User,
) []ImportResult {
	results := make([]ImportResult, len(entries))
	ids := make([]uint, 0, len(entries))
	for i, entry := range entries {
		results[i].ID = entry.TransactionID
		ids = append(ids, entry.TransactionID)
	}
	transactions, err := m.db.GetTransactionsByIDs(ids, nil)
	if err != nil {
		for i := range results {
			results[i].Err = fmt.Errorf(
				"failed to load transactions: %w",
				err,
			)
		}
		return results
	}
	byID := make(map[uint]*models.Transaction, len(transactions))
	for i := range transactions {
		byID[transactions[i].ID] = &transactions[i]
	}
	staged := make(map[int]*stagedUpdate)
	// Later entries for a transaction already staged merge into the
	// same decoded envelope, so no entry's signatures can overwrite
	// another's
	decodedByTx := make(map[uint]*ledger.Transaction)
	now := time.Now()
	for i, entry := range entries {
		update, err := m.validateEntry(
			byID[entry.TransactionID],
			entry,
			user,
			now,
			decodedByTx[entry.TransactionID],
		)
		if err != nil {
			results[i].Err = err
			continue
		}
		staged[i] = update
		decodedByTx[entry.TransactionID] = update.decoded
	}
	m.flush(ctx, staged, results, user)
	return results
}

// validateEntry runs the per-item validation pipeline and returns the
// staged byte update for a valid submission
func (m *Merger) validateEntry(
	tx *models.Transaction,
	entry ImportEntry,
	user *models.User,
	now time.Time,
	prior *ledger.Transaction,
) (*stagedUpdate, error) {
	// Absence and lack of access surface identically so existence is
	// not leaked
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	hasAccess, err := m.access.VerifyAccess(tx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to verify access: %w", err)
	}
	if !hasAccess {
		return nil, ErrTransactionNotFound
	}
	switch tx.Status {
	case models.StatusWaitingForSignatures,
		models.StatusWaitingForExecution:
	default:
		return nil, fmt.Errorf(
			"%w: status %s",
			ErrInvalidState,
			tx.Status,
		)
	}
	decoded := prior
	if decoded == nil {
		decoded, err = ledger.TransactionFromBytes(tx.TransactionBytes)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to decode transaction: %w",
				err,
			)
		}
	}
	if decoded.IsExpiredAt(now) {
		return nil, ErrExpired
	}
	pairs, err := entry.SignatureMap.Flatten()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	// Verify every pair before adding any, so a rejected entry leaves
	// a shared decoded envelope untouched
	for _, pair := range pairs {
		if err := decoded.VerifySignature(
			pair.PublicKey,
			pair.Signature,
		); err != nil {
			return nil, fmt.Errorf(
				"%w: key %s",
				ErrInvalidSignature,
				ledger.PublicKeyToString(pair.PublicKey),
			)
		}
	}
	var merged []ledger.SignaturePair
	for _, pair := range pairs {
		// Duplicate signature addition is a no-op, making
		// resubmission of an applied map safe
		if decoded.AddSignature(pair.PublicKey, pair.Signature) {
			merged = append(merged, pair)
		}
	}
	txBytes, err := decoded.Bytes()
	if err != nil {
		return nil, fmt.Errorf(
			"failed to encode transaction: %w",
			err,
		)
	}
	return &stagedUpdate{
		tx:      tx,
		decoded: decoded,
		bytes:   txBytes,
		merged:  merged,
	}, nil
}

// flush writes staged updates in fixed-size batches. A failing batch
// reports an error for every id in that batch without blocking sibling
// batches, allowing maximum partial progress under load.
func (m *Merger) flush(
	ctx context.Context,
	staged map[int]*stagedUpdate,
	results []ImportResult,
	user *models.User,
) {
	// Entries sharing a transaction merge into one decoded envelope, so
	// the last staged bytes for an id carry every earlier entry's
	// signatures and one row update per transaction suffices
	order := make([]uint, 0, len(staged))
	entriesByTx := make(map[uint][]int, len(staged))
	lastStaged := make(map[uint]*stagedUpdate, len(staged))
	for i := range results {
		update, ok := staged[i]
		if !ok {
			continue
		}
		id := update.tx.ID
		if _, ok := entriesByTx[id]; !ok {
			order = append(order, id)
		}
		entriesByTx[id] = append(entriesByTx[id], i)
		lastStaged[id] = update
	}
	var succeeded []*stagedUpdate
	var succeededIds []uint
	for start := 0; start < len(order); start += UpdateBatchSize {
		end := min(start+UpdateBatchSize, len(order))
		batch := order[start:end]
		updates := make([]database.BytesUpdate, 0, len(batch))
		for _, id := range batch {
			updates = append(updates, database.BytesUpdate{
				ID:    id,
				Bytes: lastStaged[id].bytes,
			})
		}
		if err := m.db.UpdateTransactionBytesBatch(
			updates,
			nil,
		); err != nil {
			for _, id := range batch {
				for _, i := range entriesByTx[id] {
					results[i].Err = fmt.Errorf(
						"failed to save signatures: %w",
						err,
					)
				}
			}
			continue
		}
		for _, id := range batch {
			succeededIds = append(succeededIds, id)
			for _, i := range entriesByTx[id] {
				succeeded = append(succeeded, staged[i])
			}
		}
	}
	if len(succeeded) == 0 {
		return
	}
	m.recordSigners(succeeded, user)
	for _, id := range succeededIds {
		update := lastStaged[id]
		if m.bus != nil {
			m.bus.PublishAsync(
				event.TransactionStatusUpdateEventType,
				event.NewEvent(
					event.TransactionStatusUpdateEventType,
					event.TransactionStatusUpdateEvent{
						Entries: []event.UpdateEntry{
							{
								EntityID:      update.tx.ID,
								TransactionID: update.tx.TransactionID,
								Network:       update.tx.Network,
							},
						},
					},
				),
			)
		}
	}
	if m.reeval != nil {
		m.reeval.ReevaluateStatus(ctx, succeededIds)
	}
}

// recordSigners appends signer rows for the user keys whose signatures
// were merged. Attribution is best-effort bookkeeping; a failure here
// never fails the import.
func (m *Merger) recordSigners(
	succeeded []*stagedUpdate,
	user *models.User,
) {
	keyByHex := make(map[string]models.UserKey, len(user.Keys))
	for _, userKey := range user.Keys {
		keyByHex[ledger.PublicKeyToString(userKey.PublicKey)] = userKey
	}
	var signers []models.TransactionSigner
	for _, update := range succeeded {
		seen := make(map[uint]struct{})
		for _, signer := range update.tx.Signers {
			seen[signer.UserKeyID] = struct{}{}
		}
		for _, pair := range update.merged {
			keyHex := ledger.PublicKeyToString(pair.PublicKey)
			userKey, ok := keyByHex[keyHex]
			if !ok {
				continue
			}
			if _, ok := seen[userKey.ID]; ok {
				continue
			}
			seen[userKey.ID] = struct{}{}
			signers = append(signers, models.TransactionSigner{
				TransactionID: update.tx.ID,
				UserKeyID:     userKey.ID,
				UserID:        user.ID,
			})
		}
	}
	if err := m.db.CreateSigners(signers, nil); err != nil {
		m.logger.Warn(
			"failed to record signers",
			"err", err,
		)
	}
}
