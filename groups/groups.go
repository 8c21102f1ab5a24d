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

// Package groups coordinates batches of related transactions created,
// viewed, and removed as one unit.
package groups

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/event"
	"github.com/yordanove/hedera-transaction-tool-sub000/lifecycle"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	// ErrGroupUnauthorized covers both an absent group and one whose
	// every item is hidden from the caller
	ErrGroupUnauthorized = errors.New(
		"you don't have permission to view this group",
	)
)

// CreateGroupDto describes a group and the transactions it admits
type CreateGroupDto struct {
	Description string
	Atomic      bool
	Sequential  bool
	Items       []lifecycle.CreateTransactionDto
}

// GroupItem is one group member with the transaction detail a group
// view needs
type GroupItem struct {
	Row       database.GroupItemRow
	Signers   []models.TransactionSigner
	Approvers []database.ApproverRow
	Observers []models.TransactionObserver
}

// Group is the full group view
type Group struct {
	Group *models.TransactionGroup
	Items []GroupItem
}

type ServiceConfig struct {
	Database  *database.Database
	EventBus  *event.EventBus
	Lifecycle *lifecycle.Service
	Logger    *slog.Logger
}

type Service struct {
	db     *database.Database
	bus    *event.EventBus
	txs    *lifecycle.Service
	logger *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{
		db:     cfg.Database,
		bus:    cfg.EventBus,
		txs:    cfg.Lifecycle,
		logger: logger,
	}
}

// CreateTransactionGroup admits every item transaction as one batch
// and binds them under a new group. The member transactions, the group
// row, and its items are persisted in one storage transaction, so a
// failure anywhere leaves nothing behind, and one batched status
// update announces the whole group.
func (s *Service) CreateTransactionGroup(
	ctx context.Context,
	dto CreateGroupDto,
	user *models.User,
) (*models.TransactionGroup, error) {
	if len(dto.Items) == 0 {
		return nil, fmt.Errorf("no transactions in group")
	}
	rows, err := s.txs.PrepareTransactions(ctx, dto.Items, user)
	if err != nil {
		return nil, err
	}
	group := &models.TransactionGroup{
		Description: dto.Description,
		Atomic:      dto.Atomic,
		Sequential:  dto.Sequential,
	}
	err = s.db.Transaction().Do(func(txn *database.Txn) error {
		if err := s.db.SaveTransactions(rows, txn.DB()); err != nil {
			return err
		}
		for i, row := range rows {
			group.Items = append(
				group.Items,
				models.TransactionGroupItem{
					TransactionID: row.ID,
					Seq:           i,
				},
			)
		}
		return s.db.SaveGroup(group, txn.DB())
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrPersistence, err)
	}
	s.txs.FinishCreate(rows)
	return group, nil
}

// GetTransactionGroup returns the group with the items the caller may
// see. A group where every item is hidden from the caller is
// indistinguishable from a missing one.
func (s *Service) GetTransactionGroup(
	id uint,
	user *models.User,
) (*Group, error) {
	group, err := s.db.GetGroup(id, nil)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupUnauthorized
	}
	rows, err := s.db.GetGroupItems(id, nil)
	if err != nil {
		return nil, err
	}
	visible, err := s.visibleItems(rows, user)
	if err != nil {
		return nil, err
	}
	if len(visible) == 0 {
		return nil, ErrGroupUnauthorized
	}
	txIds := make([]uint, 0, len(visible))
	for _, row := range visible {
		txIds = append(txIds, row.TransactionID)
	}
	signers, err := s.db.GetSignersByTransactionIDs(txIds, nil)
	if err != nil {
		return nil, err
	}
	approvers, err := s.db.GetApproversByTransactionIDs(txIds, nil)
	if err != nil {
		return nil, err
	}
	observers, err := s.db.GetObserversByTransactionIDs(txIds, nil)
	if err != nil {
		return nil, err
	}
	ret := &Group{Group: group}
	for _, row := range visible {
		ret.Items = append(ret.Items, GroupItem{
			Row:       row,
			Signers:   signers[row.TransactionID],
			Approvers: approvers[row.TransactionID],
			Observers: observers[row.TransactionID],
		})
	}
	return ret, nil
}

// visibleItems keeps the rows whose transaction the user may view
func (s *Service) visibleItems(
	rows []database.GroupItemRow,
	user *models.User,
) ([]database.GroupItemRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TransactionID)
	}
	transactions, err := s.db.GetTransactionsByIDs(ids, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Transaction, len(transactions))
	for i := range transactions {
		byID[transactions[i].ID] = &transactions[i]
	}
	var visible []database.GroupItemRow
	for _, row := range rows {
		tx, ok := byID[row.TransactionID]
		if !ok {
			continue
		}
		allowed, err := s.txs.VerifyAccess(tx, user)
		if err != nil {
			return nil, err
		}
		if allowed {
			visible = append(visible, row)
		}
	}
	return visible, nil
}

// RemoveTransactionGroup hard-removes every member transaction and then
// the group itself, publishing one batched update for the whole group
func (s *Service) RemoveTransactionGroup(
	id uint,
	user *models.User,
) error {
	group, err := s.db.GetGroup(id, nil)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	rows, err := s.db.GetGroupItems(id, nil)
	if err != nil {
		return err
	}
	// Every member must be removable by the caller before anything is
	// touched, so a mid-group authorization failure cannot leave a
	// half-removed group
	transactions, err := s.db.GetTransactionsByIDs(
		itemTransactionIDs(rows),
		nil,
	)
	if err != nil {
		return err
	}
	for i := range transactions {
		owned, err := s.txs.VerifyCreator(&transactions[i], user)
		if err != nil {
			return err
		}
		if !owned {
			return lifecycle.ErrUnauthorized
		}
	}
	entries := make([]event.UpdateEntry, 0, len(transactions))
	for i := range transactions {
		tx := &transactions[i]
		if err := s.db.DeleteTransaction(tx.ID, true, nil); err != nil {
			return err
		}
		entries = append(entries, event.UpdateEntry{
			EntityID:      tx.ID,
			TransactionID: tx.TransactionID,
			Network:       tx.Network,
		})
	}
	err = s.db.Transaction().Do(func(txn *database.Txn) error {
		return s.db.DeleteGroup(id, txn.DB())
	})
	if err != nil {
		return err
	}
	if s.bus != nil && len(entries) > 0 {
		s.bus.PublishAsync(
			event.TransactionUpdateEventType,
			event.NewEvent(
				event.TransactionUpdateEventType,
				event.TransactionUpdateEvent{Entries: entries},
			),
		)
	}
	return nil
}

func itemTransactionIDs(rows []database.GroupItemRow) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TransactionID)
	}
	return ids
}
