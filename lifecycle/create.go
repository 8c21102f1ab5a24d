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

package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/event"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
	"github.com/yordanove/hedera-transaction-tool-sub000/scheduler"
	"github.com/yordanove/hedera-transaction-tool-sub000/signing"
)

// CreateTransactionDto is the validated input for admitting one
// transaction
type CreateTransactionDto struct {
	Name             string
	Description      string
	TransactionBytes []byte
	// Signature is the creator's signature over the transaction body
	// bytes, made with the creator key, binding authorship
	Signature    []byte
	CreatorKeyID uint
	CutoffAt     *time.Time
	IsManual     bool
	// ReminderLead asks for a sign reminder this long before
	// valid-start; nil disables the reminder
	ReminderLead *time.Duration
}

// CreateTransaction admits a single transaction
func (s *Service) CreateTransaction(
	ctx context.Context,
	dto CreateTransactionDto,
	user *models.User,
) (*models.Transaction, error) {
	created, err := s.CreateTransactions(
		ctx,
		[]CreateTransactionDto{dto},
		user,
	)
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// CreateTransactions admits a batch of transactions as one unit: every
// dto is validated and frozen against one shared ledger client, ids
// are checked for collisions against active transactions, and the
// whole batch is persisted in a single storage transaction. Any
// failure rejects the entire batch.
func (s *Service) CreateTransactions(
	ctx context.Context,
	dtos []CreateTransactionDto,
	user *models.User,
) ([]*models.Transaction, error) {
	rows, err := s.PrepareTransactions(ctx, dtos, user)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction().Do(func(txn *database.Txn) error {
		return s.db.SaveTransactions(rows, txn.DB())
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrPersistence, err)
	}
	s.FinishCreate(rows)
	return rows, nil
}

// PrepareTransactions runs the full admission pipeline without
// persisting anything: validation and freezing against one shared
// ledger client, then duplicate checks within the batch and against
// active transactions. The caller owns persisting the returned rows
// and must call FinishCreate afterwards.
func (s *Service) PrepareTransactions(
	ctx context.Context,
	dtos []CreateTransactionDto,
	user *models.User,
) ([]*models.Transaction, error) {
	if len(dtos) == 0 {
		return nil, fmt.Errorf("no transactions to create")
	}
	client, err := ledger.NewClient(s.network)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger client: %w", err)
	}
	// The client is shared across the whole batch and released on
	// every exit path
	defer client.Close()

	keyByID := make(map[uint]models.UserKey, len(user.Keys))
	for _, userKey := range user.Keys {
		keyByID[userKey.ID] = userKey
	}
	now := time.Now()
	rows := make([]*models.Transaction, 0, len(dtos))
	networkIds := make(map[string]struct{}, len(dtos))
	for i, dto := range dtos {
		row, err := s.buildTransaction(client, dto, keyByID, now)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if _, ok := networkIds[row.TransactionID]; ok {
			return nil, fmt.Errorf(
				"%w: %s",
				ErrDuplicate,
				row.TransactionID,
			)
		}
		networkIds[row.TransactionID] = struct{}{}
		rows = append(rows, row)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TransactionID)
	}
	taken, err := s.db.GetActiveTransactionIDs(ids, nil)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to check for duplicates: %w",
			err,
		)
	}
	if len(taken) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, taken[0])
	}
	return rows, nil
}

// FinishCreate runs the post-persistence bookkeeping for admitted
// rows: metrics, best-effort reminder scheduling, and one status
// update covering the whole batch
func (s *Service) FinishCreate(rows []*models.Transaction) {
	if s.metrics != nil {
		s.metrics.created.Add(float64(len(rows)))
	}
	for _, row := range rows {
		if row.ReminderAt == nil || s.sched == nil {
			continue
		}
		s.sched.AddReminder(
			scheduler.ReminderKey(row.TransactionID),
			*row.ReminderAt,
		)
	}
	entries := make([]event.UpdateEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, event.UpdateEntry{
			EntityID:      row.ID,
			TransactionID: row.TransactionID,
			Network:       row.Network,
		})
	}
	s.publishStatusUpdateBatch(entries)
}

// buildTransaction runs the per-dto validation pipeline and produces
// the row to persist
func (s *Service) buildTransaction(
	client *ledger.Client,
	dto CreateTransactionDto,
	keyByID map[uint]models.UserKey,
	now time.Time,
) (*models.Transaction, error) {
	creatorKey, ok := keyByID[dto.CreatorKeyID]
	if !ok {
		return nil, fmt.Errorf(
			"%w: creator key does not belong to user",
			ErrUnauthorized,
		)
	}
	decoded, err := ledger.TransactionFromBytes(dto.TransactionBytes)
	if err != nil {
		return nil, err
	}
	// Re-freeze against the shared client when the submitted body
	// never named its nodes
	if len(decoded.Body.NodeAccountIDs) == 0 {
		refrozen := ledger.NewTransaction(decoded.Body)
		if err := refrozen.Freeze(client); err != nil {
			return nil, err
		}
		refrozen.Signatures = decoded.Signatures
		decoded = refrozen
	}
	bodyBytes, err := decoded.BodyBytes()
	if err != nil {
		return nil, err
	}
	if len(bodyBytes) > ledger.MaxBodyBytes {
		return nil, fmt.Errorf(
			"%w: %d bytes",
			ErrOversize,
			len(bodyBytes),
		)
	}
	if decoded.IsExpiredAt(now) {
		return nil, ErrExpired
	}
	if err := decoded.VerifySignature(
		creatorKey.PublicKey,
		dto.Signature,
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	hash, err := decoded.Hash()
	if err != nil {
		return nil, err
	}
	txBytes, err := decoded.Bytes()
	if err != nil {
		return nil, err
	}
	status := models.StatusWaitingForSignatures
	if signing.IsSatisfied(
		decoded.Body.SigningKey,
		decoded.SignedBy(),
	) {
		status = models.StatusWaitingForExecution
	}
	row := &models.Transaction{
		TransactionID:    decoded.Body.TransactionID.String(),
		Name:             dto.Name,
		Description:      dto.Description,
		Network:          s.network,
		Status:           status,
		Type:             uint(decoded.Body.Type),
		UnsignedBytes:    bodyBytes,
		TransactionBytes: txBytes,
		TransactionHash:  hash,
		Signature:        dto.Signature,
		ValidStart:       decoded.ValidStart(),
		CutoffAt:         dto.CutoffAt,
		CreatorKeyID:     creatorKey.ID,
		IsManual:         dto.IsManual,
	}
	if dto.ReminderLead != nil {
		reminderAt := row.ValidStart.Add(-*dto.ReminderLead)
		row.ReminderAt = &reminderAt
	}
	// New-key extraction is bookkeeping only; a failure is logged and
	// treated as no new keys
	newKeys, err := ledger.NewKeys(decoded)
	if err != nil {
		s.logger.Warn(
			"failed to extract new keys",
			"transaction_id", row.TransactionID,
			"err", err,
		)
	} else if len(newKeys) > 0 {
		encoded, err := cbor.Marshal(newKeys)
		if err != nil {
			s.logger.Warn(
				"failed to encode new keys",
				"transaction_id", row.TransactionID,
				"err", err,
			)
		} else {
			row.NewKeys = encoded
		}
	}
	return row, nil
}
