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

	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/event"
)

// CanCancel reports whether a transaction in the given status may be
// canceled by its creator
func CanCancel(status models.TransactionStatus) bool {
	switch status {
	case models.StatusNew,
		models.StatusWaitingForSignatures,
		models.StatusWaitingForExecution:
		return true
	default:
		return false
	}
}

// CanArchive reports whether a transaction may be archived by its
// creator. Manual transactions may additionally be archived from any
// pre-terminal state.
func CanArchive(
	status models.TransactionStatus,
	isManual bool,
) bool {
	switch status {
	case models.StatusWaitingForSignatures,
		models.StatusWaitingForExecution:
		return true
	case models.StatusNew:
		return isManual
	default:
		return false
	}
}

// CancelTransaction moves a creator-owned transaction to CANCELED
func (s *Service) CancelTransaction(
	id uint,
	user *models.User,
) error {
	tx, err := s.getCreatorOwned(id, user)
	if err != nil {
		return err
	}
	if !CanCancel(tx.Status) {
		return fmt.Errorf(
			"%w: cannot cancel from %s",
			ErrInvalidState,
			tx.Status,
		)
	}
	if err := s.db.UpdateTransactionStatus(
		tx.ID,
		models.StatusCanceled,
		nil,
	); err != nil {
		return fmt.Errorf("failed to cancel transaction: %w", err)
	}
	tx.Status = models.StatusCanceled
	s.publishStatusUpdate(tx)
	return nil
}

// ArchiveTransaction moves a creator-owned transaction to ARCHIVED
func (s *Service) ArchiveTransaction(
	id uint,
	user *models.User,
) error {
	tx, err := s.getCreatorOwned(id, user)
	if err != nil {
		return err
	}
	if !CanArchive(tx.Status, tx.IsManual) {
		return fmt.Errorf(
			"%w: cannot archive from %s",
			ErrInvalidState,
			tx.Status,
		)
	}
	if err := s.db.UpdateTransactionStatus(
		tx.ID,
		models.StatusArchived,
		nil,
	); err != nil {
		return fmt.Errorf("failed to archive transaction: %w", err)
	}
	tx.Status = models.StatusArchived
	s.publishStatusUpdate(tx)
	return nil
}

// ExecuteTransaction triggers execution of a transaction waiting for
// execution. When valid-start is still in the future the manual flag
// is cleared instead, signaling the transaction is ready for the
// normal automatic path, and a plain update (not a status update) is
// emitted. Once valid-start has passed the trigger hands the
// transaction to the executor whether or not an earlier call already
// cleared the manual flag.
func (s *Service) ExecuteTransaction(
	ctx context.Context,
	id uint,
	user *models.User,
) error {
	tx, err := s.getCreatorOwned(id, user)
	if err != nil {
		return err
	}
	if tx.Status != models.StatusWaitingForExecution {
		return fmt.Errorf(
			"%w: cannot execute from %s",
			ErrInvalidState,
			tx.Status,
		)
	}
	if tx.ValidStart.After(time.Now()) {
		if !tx.IsManual {
			return fmt.Errorf(
				"%w: transaction is not manual",
				ErrInvalidState,
			)
		}
		if err := s.db.ClearTransactionManual(tx.ID, nil); err != nil {
			return fmt.Errorf(
				"failed to clear manual flag: %w",
				err,
			)
		}
		s.publishUpdate([]event.UpdateEntry{{
			EntityID:      tx.ID,
			TransactionID: tx.TransactionID,
			Network:       tx.Network,
		}})
		return nil
	}
	if s.exec == nil {
		return fmt.Errorf("%w: no executor configured", ErrInvalidState)
	}
	if s.metrics != nil {
		s.metrics.executed.Inc()
	}
	if err := s.exec.ExecuteTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to execute transaction: %w", err)
	}
	s.publishStatusUpdate(tx)
	return nil
}

// RemoveTransaction removes a creator-owned transaction. Soft removal
// marks it CANCELED first so the audit trail survives; hard removal
// deletes the row outright along with its group item.
func (s *Service) RemoveTransaction(
	id uint,
	user *models.User,
	soft bool,
) error {
	tx, err := s.getCreatorOwned(id, user)
	if err != nil {
		return err
	}
	if soft {
		if err := s.db.UpdateTransactionStatus(
			tx.ID,
			models.StatusCanceled,
			nil,
		); err != nil {
			return fmt.Errorf(
				"failed to cancel transaction: %w",
				err,
			)
		}
	}
	if err := s.db.DeleteTransaction(tx.ID, !soft, nil); err != nil {
		return fmt.Errorf("failed to remove transaction: %w", err)
	}
	s.publishUpdate([]event.UpdateEntry{{
		EntityID:      tx.ID,
		TransactionID: tx.TransactionID,
		Network:       tx.Network,
	}})
	return nil
}

// ExpireTransactions marks every waiting transaction whose cutoff or
// acceptance window has passed as EXPIRED and emits a status update
// per affected transaction. Called periodically by the coordinator.
func (s *Service) ExpireTransactions(now time.Time) error {
	expired, err := s.db.MarkExpiredTransactions(now, nil)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.expired.Add(float64(len(expired)))
	}
	for i := range expired {
		s.publishStatusUpdate(&expired[i])
	}
	return nil
}
