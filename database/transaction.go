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
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
)

// GetTransaction returns a transaction by internal id, or nil when
// absent
func (d *Database) GetTransaction(
	id uint,
	txn *gorm.DB,
) (*models.Transaction, error) {
	ret := &models.Transaction{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.
		Preload("CreatorKey").
		Preload("Observers").
		Preload("Signers").
		First(ret, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetTransactionsByIDs returns the transactions for the given internal
// ids in one query, missing ids simply absent from the result
func (d *Database) GetTransactionsByIDs(
	ids []uint,
	txn *gorm.DB,
) ([]models.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if txn == nil {
		txn = d.DB()
	}
	var ret []models.Transaction
	result := txn.
		Preload("CreatorKey").
		Preload("Observers").
		Preload("Signers").
		Find(&ret, "id IN ?", ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetActiveTransactionIDs returns which of the given network
// transaction ids are already taken by a transaction that still holds
// its id (anything outside the inactive status set)
func (d *Database) GetActiveTransactionIDs(
	transactionIDs []string,
	txn *gorm.DB,
) ([]string, error) {
	if len(transactionIDs) == 0 {
		return nil, nil
	}
	if txn == nil {
		txn = d.DB()
	}
	var ret []string
	result := txn.
		Model(&models.Transaction{}).
		Where("transaction_id IN ?", transactionIDs).
		Where("status NOT IN ?", models.InactiveStatuses).
		Pluck("transaction_id", &ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SaveTransactions persists a batch of new transactions
func (d *Database) SaveTransactions(
	transactions []*models.Transaction,
	txn *gorm.DB,
) error {
	if len(transactions) == 0 {
		return nil
	}
	if txn == nil {
		txn = d.DB()
	}
	if result := txn.Create(transactions); result.Error != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, result.Error)
	}
	return nil
}

// UpdateTransactionStatus applies a status transition
func (d *Database) UpdateTransactionStatus(
	id uint,
	status models.TransactionStatus,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	updates := map[string]any{
		"status": status,
	}
	if status == models.StatusExecuted {
		now := time.Now()
		updates["executed_at"] = &now
	}
	result := txn.
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates)
	return result.Error
}

// ClearTransactionManual clears the manual-execution flag without
// touching status
func (d *Database) ClearTransactionManual(
	id uint,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	result := txn.
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("is_manual", false)
	return result.Error
}

// DeleteTransaction removes a transaction row. Soft deletion keeps the
// row for audit; hard deletion removes it outright along with its
// group item.
func (d *Database) DeleteTransaction(
	id uint,
	hard bool,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	handle := txn
	if hard {
		handle = txn.Unscoped()
		if result := handle.
			Where("transaction_id = ?", id).
			Delete(&models.TransactionGroupItem{}); result.Error != nil {
			return result.Error
		}
	}
	result := handle.Delete(&models.Transaction{}, "id = ?", id)
	return result.Error
}

// BytesUpdate is one staged transaction-bytes change
type BytesUpdate struct {
	Bytes []byte
	ID    uint
}

// UpdateTransactionBytesBatch writes a batch of staged byte updates as
// a single conditional UPDATE keyed by id, bounding round-trips under
// high-volume signature submission
func (d *Database) UpdateTransactionBytesBatch(
	updates []BytesUpdate,
	txn *gorm.DB,
) error {
	if len(updates) == 0 {
		return nil
	}
	if txn == nil {
		txn = d.DB()
	}
	var sb strings.Builder
	args := make([]any, 0, len(updates)*3+1)
	sb.WriteString(
		`UPDATE "transaction" SET transaction_bytes = CASE id`,
	)
	ids := make([]any, 0, len(updates))
	for _, update := range updates {
		sb.WriteString(" WHEN ? THEN ?")
		args = append(args, update.ID, update.Bytes)
		ids = append(ids, update.ID)
	}
	sb.WriteString(" END, updated_at = ? WHERE id IN (?")
	args = append(args, time.Now())
	sb.WriteString(strings.Repeat(",?", len(ids)-1))
	sb.WriteString(")")
	args = append(args, ids...)
	result := txn.Exec(sb.String(), args...)
	return result.Error
}

// MarkExpiredTransactions transitions every waiting transaction whose
// cutoff has passed (or, absent a cutoff, whose default acceptance
// window after valid-start has passed) to EXPIRED, returning the
// affected rows
func (d *Database) MarkExpiredTransactions(
	now time.Time,
	txn *gorm.DB,
) ([]models.Transaction, error) {
	if txn == nil {
		txn = d.DB()
	}
	windowEnd := now.Add(-2 * time.Minute)
	waiting := []models.TransactionStatus{
		models.StatusWaitingForSignatures,
		models.StatusWaitingForExecution,
	}
	var expired []models.Transaction
	result := txn.
		Where("status IN ?", waiting).
		Where(
			"(cutoff_at IS NOT NULL AND cutoff_at < ?)"+
				" OR (cutoff_at IS NULL AND valid_start < ?)",
			now,
			windowEnd,
		).
		Find(&expired)
	if result.Error != nil {
		return nil, result.Error
	}
	if len(expired) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(expired))
	for i := range expired {
		ids = append(ids, expired[i].ID)
		expired[i].Status = models.StatusExpired
	}
	result = txn.
		Model(&models.Transaction{}).
		Where("id IN ?", ids).
		Update("status", models.StatusExpired)
	if result.Error != nil {
		return nil, result.Error
	}
	return expired, nil
}

// GetPendingReminders returns the transactions still waiting for
// signatures whose sign reminder has not yet come due, for timer
// restoration after a restart
func (d *Database) GetPendingReminders(
	now time.Time,
	txn *gorm.DB,
) ([]models.Transaction, error) {
	if txn == nil {
		txn = d.DB()
	}
	var pending []models.Transaction
	result := txn.
		Where("status = ?", models.StatusWaitingForSignatures).
		Where("reminder_at IS NOT NULL AND reminder_at > ?", now).
		Find(&pending)
	if result.Error != nil {
		return nil, result.Error
	}
	return pending, nil
}

// ListParams describes a paginated listing query
type ListParams struct {
	// Statuses restricts results to the given set when non-nil. An
	// empty non-nil set matches nothing.
	Statuses []models.TransactionStatus
	// ExcludeStatuses removes the given statuses from results
	ExcludeStatuses []models.TransactionStatus
	// IDs restricts results to the given internal ids when non-nil
	IDs []uint
	// UserRelated restricts results to transactions the given user
	// created, observes, or signed
	UserRelated uint
	Network     string
	SortField       string
	SortDescending  bool
	Limit           int
	Offset          int
}

// listSortFields is the allow-list of sortable columns
var listSortFields = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"validStart": "valid_start",
	"name":       "name",
	"status":     "status",
}

// applyListParams narrows a query by the common listing filters,
// returning false when the filter can never match
func applyListParams(
	query *gorm.DB,
	params ListParams,
) (*gorm.DB, bool) {
	if params.Statuses != nil {
		if len(params.Statuses) == 0 {
			return nil, false
		}
		query = query.Where("status IN ?", params.Statuses)
	}
	if len(params.ExcludeStatuses) > 0 {
		query = query.Where(
			"status NOT IN ?",
			params.ExcludeStatuses,
		)
	}
	if params.Network != "" {
		query = query.Where("network = ?", params.Network)
	}
	return query, true
}

// ListTransactions returns one page of transactions plus the total
// count for the filter
func (d *Database) ListTransactions(
	params ListParams,
	txn *gorm.DB,
) ([]models.Transaction, int64, error) {
	if txn == nil {
		txn = d.DB()
	}
	query, ok := applyListParams(
		txn.Model(&models.Transaction{}),
		params,
	)
	if !ok {
		// Explicit empty status set matches nothing
		return nil, 0, nil
	}
	if params.IDs != nil {
		if len(params.IDs) == 0 {
			return nil, 0, nil
		}
		query = query.Where("id IN ?", params.IDs)
	}
	if params.UserRelated != 0 {
		userID := params.UserRelated
		creatorKeys := txn.
			Model(&models.UserKey{}).
			Unscoped().
			Select("id").
			Where("user_id = ?", userID)
		observed := txn.
			Model(&models.TransactionObserver{}).
			Select("transaction_id").
			Where("user_id = ?", userID)
		signed := txn.
			Model(&models.TransactionSigner{}).
			Select("transaction_id").
			Where("user_id = ?", userID)
		query = query.Where(
			"creator_key_id IN (?) OR id IN (?) OR id IN (?)",
			creatorKeys,
			observed,
			signed,
		)
	}
	var total int64
	if result := query.Count(&total); result.Error != nil {
		return nil, 0, result.Error
	}
	column, ok := listSortFields[params.SortField]
	if !ok {
		column = "created_at"
	}
	query = query.Order(clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   params.SortDescending,
	})
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}
	var ret []models.Transaction
	if result := query.
		Preload("CreatorKey").
		Find(&ret); result.Error != nil {
		return nil, 0, result.Error
	}
	return ret, total, nil
}
