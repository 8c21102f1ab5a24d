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

// CreateSigners appends signer records for a transaction. The signer
// log is append-only; existing rows are never rewritten.
func (d *Database) CreateSigners(
	signers []models.TransactionSigner,
	txn *gorm.DB,
) error {
	if len(signers) == 0 {
		return nil
	}
	if txn == nil {
		txn = d.DB()
	}
	return txn.Create(&signers).Error
}

// GetSignersByTransactionIDs returns signer rows for the given
// transactions, grouped by transaction id
func (d *Database) GetSignersByTransactionIDs(
	ids []uint,
	txn *gorm.DB,
) (map[uint][]models.TransactionSigner, error) {
	if len(ids) == 0 {
		return map[uint][]models.TransactionSigner{}, nil
	}
	if txn == nil {
		txn = d.DB()
	}
	var rows []models.TransactionSigner
	result := txn.
		Preload("UserKey").
		Find(&rows, "transaction_id IN ?", ids)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make(map[uint][]models.TransactionSigner)
	for _, row := range rows {
		out[row.TransactionID] = append(out[row.TransactionID], row)
	}
	return out, nil
}

// CreateObserver registers a user for notifications on a transaction
func (d *Database) CreateObserver(
	observer *models.TransactionObserver,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	return txn.Create(observer).Error
}

// GetObserversByTransactionIDs returns observer rows grouped by
// transaction id
func (d *Database) GetObserversByTransactionIDs(
	ids []uint,
	txn *gorm.DB,
) (map[uint][]models.TransactionObserver, error) {
	if len(ids) == 0 {
		return map[uint][]models.TransactionObserver{}, nil
	}
	if txn == nil {
		txn = d.DB()
	}
	var rows []models.TransactionObserver
	result := txn.Find(&rows, "transaction_id IN ?", ids)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make(map[uint][]models.TransactionObserver)
	for _, row := range rows {
		out[row.TransactionID] = append(out[row.TransactionID], row)
	}
	return out, nil
}

// CreateComment attaches a comment to a transaction
func (d *Database) CreateComment(
	comment *models.TransactionComment,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	return txn.Create(comment).Error
}

// GetComments returns the comments for a transaction in creation order
func (d *Database) GetComments(
	transactionID uint,
	txn *gorm.DB,
) ([]models.TransactionComment, error) {
	if txn == nil {
		txn = d.DB()
	}
	var rows []models.TransactionComment
	result := txn.
		Order("created_at").
		Find(&rows, "transaction_id = ?", transactionID)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}
