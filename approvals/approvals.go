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

// Package approvals maintains the recursive approver tree attached to
// a transaction and answers whether a given user still needs to
// approve it.
package approvals

import (
	"errors"
	"io"
	"log/slog"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/event"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Node is one reconstructed approval tree node with its children
// resolved from the stored parent pointers
type Node struct {
	Row      database.ApproverRow
	Children []*Node
}

// BuildTree reconstructs the approval tree from flat rows, building a
// single parent-to-children index instead of repeated point lookups
func BuildTree(rows []database.ApproverRow) []*Node {
	nodes := make(map[uint]*Node, len(rows))
	children := make(map[uint][]uint)
	var rootIds []uint
	for _, row := range rows {
		nodes[row.ID] = &Node{Row: row}
		if row.ListID == nil {
			rootIds = append(rootIds, row.ID)
		} else {
			children[*row.ListID] = append(
				children[*row.ListID],
				row.ID,
			)
		}
	}
	for parentId, childIds := range children {
		parent, ok := nodes[parentId]
		if !ok {
			// Orphaned row; its parent was removed
			continue
		}
		for _, childId := range childIds {
			parent.Children = append(
				parent.Children,
				nodes[childId],
			)
		}
	}
	roots := make([]*Node, 0, len(rootIds))
	for _, id := range rootIds {
		roots = append(roots, nodes[id])
	}
	return roots
}

// UserNeedsToApprove reports whether the rows place the user in the
// approver tree with no approval sent yet. A user holding several
// approver slots signs once; any recorded signature of theirs clears
// all of their slots from further prompting.
func UserNeedsToApprove(
	rows []database.ApproverRow,
	userID uint,
) bool {
	hasSlot := false
	for _, row := range rows {
		if row.UserID == nil || *row.UserID != userID {
			continue
		}
		if len(row.Signature) > 0 {
			return false
		}
		hasSlot = true
	}
	return hasSlot
}

// Service answers approval queries and records approval decisions
type Service struct {
	db     *database.Database
	bus    *event.EventBus
	logger *slog.Logger
}

func NewService(
	db *database.Database,
	bus *event.EventBus,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With("component", "approvals"),
	}
}

// ShouldApproveTransaction reports whether the user still needs to
// approve the given transaction
func (s *Service) ShouldApproveTransaction(
	transactionID uint,
	user *models.User,
) (bool, error) {
	rows, err := s.db.GetApproverTree(transactionID, nil)
	if err != nil {
		return false, err
	}
	return UserNeedsToApprove(rows, user.ID), nil
}

// ApproverDto describes one node of a requested approval tree. A node
// names either a user slot or a threshold group with nested approvers.
type ApproverDto struct {
	UserID    *uint
	UserKeyID *uint
	Threshold *uint32
	Approvers []ApproverDto
}

// CreateApprovers attaches an approval tree to a transaction. Rows are
// inserted level by level inside one storage transaction so parent ids
// exist before their children reference them.
func (s *Service) CreateApprovers(
	transactionID uint,
	dtos []ApproverDto,
) error {
	tx, err := s.db.GetTransaction(transactionID, nil)
	if err != nil {
		return err
	}
	if tx == nil {
		return ErrTransactionNotFound
	}
	return s.db.Transaction().Do(func(txn *database.Txn) error {
		return s.createApproverLevel(
			txn,
			&transactionID,
			nil,
			dtos,
		)
	})
}

func (s *Service) createApproverLevel(
	txn *database.Txn,
	transactionID *uint,
	listID *uint,
	dtos []ApproverDto,
) error {
	for _, dto := range dtos {
		row := &models.TransactionApprover{
			TransactionID: transactionID,
			ListID:        listID,
			UserID:        dto.UserID,
			UserKeyID:     dto.UserKeyID,
			Threshold:     dto.Threshold,
		}
		err := s.db.CreateApprovers(
			[]*models.TransactionApprover{row},
			txn.DB(),
		)
		if err != nil {
			return err
		}
		if len(dto.Approvers) > 0 {
			// Only root rows carry the transaction id; nested rows
			// reach it through their parent chain
			err = s.createApproverLevel(
				txn,
				nil,
				&row.ID,
				dto.Approvers,
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Approve records the user's approval decision on every approver slot
// they hold. A denial rejects the transaction outright.
func (s *Service) Approve(
	transactionID uint,
	user *models.User,
	signature []byte,
	approved bool,
) error {
	tx, err := s.db.GetTransaction(transactionID, nil)
	if err != nil {
		return err
	}
	if tx == nil {
		return ErrTransactionNotFound
	}
	rows, err := s.db.GetApproverTree(transactionID, nil)
	if err != nil {
		return err
	}
	if !UserNeedsToApprove(rows, user.ID) {
		return ErrTransactionNotFound
	}
	for _, row := range rows {
		if row.UserID == nil || *row.UserID != user.ID {
			continue
		}
		if err := s.db.SetApproverSignature(
			row.ID,
			signature,
			approved,
			nil,
		); err != nil {
			return err
		}
	}
	if !approved {
		if err := s.db.UpdateTransactionStatus(
			tx.ID,
			models.StatusRejected,
			nil,
		); err != nil {
			return err
		}
	}
	if s.bus != nil {
		s.bus.PublishAsync(
			event.TransactionStatusUpdateEventType,
			event.NewEvent(
				event.TransactionStatusUpdateEventType,
				event.TransactionStatusUpdateEvent{
					Entries: []event.UpdateEntry{{
						EntityID:      tx.ID,
						TransactionID: tx.TransactionID,
						Network:       tx.Network,
					}},
				},
			),
		)
	}
	return nil
}
