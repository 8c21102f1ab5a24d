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

package database

import (
	"gorm.io/gorm"

	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
)

// ApproverRow is one node of an approval tree as returned by the
// recursive tree query, tagged with the root transaction it belongs to
// so batched queries can fan rows back out per transaction
type ApproverRow struct {
	Signature         []byte
	ID                uint
	RootTransactionID uint
	TransactionID     *uint
	ListID            *uint
	UserID            *uint
	UserKeyID         *uint
	Threshold         *uint32
	Approved          *bool
}

// approverTreeQuery walks the parent-pointer tree from the roots
// attached to the given transactions down through every nested
// approval group
const approverTreeQuery = `
WITH RECURSIVE approver_tree AS (
	SELECT a.id, a.transaction_id, a.list_id, a.user_id,
	       a.user_key_id, a.threshold, a.signature, a.approved,
	       a.transaction_id AS root_transaction_id
	FROM transaction_approver a
	WHERE a.transaction_id IN ? AND a.deleted_at IS NULL
	UNION ALL
	SELECT a.id, a.transaction_id, a.list_id, a.user_id,
	       a.user_key_id, a.threshold, a.signature, a.approved,
	       t.root_transaction_id
	FROM transaction_approver a
	JOIN approver_tree t ON a.list_id = t.id
	WHERE a.deleted_at IS NULL
)
SELECT * FROM approver_tree
`

// GetApproversByTransactionIDs returns every approval tree node for
// the given transactions in one recursive query, grouped by the owning
// transaction id
func (d *Database) GetApproversByTransactionIDs(
	ids []uint,
	txn *gorm.DB,
) (map[uint][]ApproverRow, error) {
	if len(ids) == 0 {
		return map[uint][]ApproverRow{}, nil
	}
	if txn == nil {
		txn = d.DB()
	}
	var rows []ApproverRow
	result := txn.Raw(approverTreeQuery, ids).Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make(map[uint][]ApproverRow)
	for _, row := range rows {
		out[row.RootTransactionID] = append(
			out[row.RootTransactionID],
			row,
		)
	}
	return out, nil
}

// GetApproverTree returns the full approval tree for one transaction
func (d *Database) GetApproverTree(
	transactionID uint,
	txn *gorm.DB,
) ([]ApproverRow, error) {
	byTx, err := d.GetApproversByTransactionIDs(
		[]uint{transactionID},
		txn,
	)
	if err != nil {
		return nil, err
	}
	return byTx[transactionID], nil
}

// userApproverRootsQuery ascends from the user's unsigned approver
// slots through nested group nodes to the owning transactions
const userApproverRootsQuery = `
WITH RECURSIVE up AS (
	SELECT a.id, a.transaction_id, a.list_id
	FROM transaction_approver a
	WHERE a.user_id = ? AND a.signature IS NULL
	      AND a.deleted_at IS NULL
	UNION ALL
	SELECT a.id, a.transaction_id, a.list_id
	FROM transaction_approver a
	JOIN up ON up.list_id = a.id
	WHERE a.deleted_at IS NULL
)
SELECT DISTINCT transaction_id FROM up
WHERE transaction_id IS NOT NULL
`

// GetUserApproverTransactionIDs returns the ids of transactions where
// the user holds an approver slot with no signature recorded
func (d *Database) GetUserApproverTransactionIDs(
	userID uint,
	txn *gorm.DB,
) ([]uint, error) {
	if txn == nil {
		txn = d.DB()
	}
	var ids []uint
	result := txn.Raw(userApproverRootsQuery, userID).Scan(&ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

// CreateApprovers persists approval tree rows. The approver log is
// append-only.
func (d *Database) CreateApprovers(
	approvers []*models.TransactionApprover,
	txn *gorm.DB,
) error {
	if len(approvers) == 0 {
		return nil
	}
	if txn == nil {
		txn = d.DB()
	}
	return txn.Create(&approvers).Error
}

// SetApproverSignature records a user's approval signature on one of
// their approver rows
func (d *Database) SetApproverSignature(
	id uint,
	signature []byte,
	approved bool,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	result := txn.
		Model(&models.TransactionApprover{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"signature": signature,
			"approved":  approved,
		})
	return result.Error
}
