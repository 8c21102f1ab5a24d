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
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
)

// SaveGroup persists a group row together with its items
func (d *Database) SaveGroup(
	group *models.TransactionGroup,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	return txn.Create(group).Error
}

// GetGroup returns the bare group row, or nil when absent
func (d *Database) GetGroup(
	id uint,
	txn *gorm.DB,
) (*models.TransactionGroup, error) {
	ret := &models.TransactionGroup{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.
		Preload("Items").
		First(ret, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GroupItemRow is one group item joined with its transaction and the
// creator's key/user identity, reconstructed in a single query instead
// of per-item lookups
type GroupItemRow struct {
	Name             string
	Description      string
	NetworkTxID      string
	Network          string
	CreatorEmail     string
	Status           models.TransactionStatus
	TransactionBytes []byte
	ValidStart       time.Time
	Seq              int
	Type             uint
	TransactionID    uint
	CreatorKeyID     uint
	CreatorUserID    uint
	IsManual         bool
}

const groupItemsQuery = `
SELECT gi.seq AS seq,
       gi.transaction_id AS transaction_id,
       t.name AS name,
       t.description AS description,
       t.transaction_id AS network_tx_id,
       t.network AS network,
       t.status AS status,
       t.type AS type,
       t.transaction_bytes AS transaction_bytes,
       t.valid_start AS valid_start,
       t.is_manual AS is_manual,
       t.creator_key_id AS creator_key_id,
       uk.user_id AS creator_user_id,
       u.email AS creator_email
FROM transaction_group_item gi
JOIN "transaction" t
  ON t.id = gi.transaction_id AND t.deleted_at IS NULL
JOIN user_key uk ON uk.id = t.creator_key_id
JOIN "user" u ON u.id = uk.user_id
WHERE gi.group_id = ?
ORDER BY gi.seq
`

// GetGroupItems returns the group's items with their transactions and
// creator identities in one joined query
func (d *Database) GetGroupItems(
	groupID uint,
	txn *gorm.DB,
) ([]GroupItemRow, error) {
	if txn == nil {
		txn = d.DB()
	}
	var rows []GroupItemRow
	result := txn.Raw(groupItemsQuery, groupID).Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}

// DeleteGroup removes the group row and any remaining items
func (d *Database) DeleteGroup(
	id uint,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	if result := txn.
		Where("group_id = ?", id).
		Delete(&models.TransactionGroupItem{}); result.Error != nil {
		return result.Error
	}
	result := txn.Delete(&models.TransactionGroup{}, "id = ?", id)
	return result.Error
}
