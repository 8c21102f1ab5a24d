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

package execution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/execution"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func seedTransaction(
	t *testing.T,
	db *database.Database,
) *models.Transaction {
	t.Helper()
	row := &models.Transaction{
		TransactionID:    "0.0.1234@1700000000.000000000",
		Name:             "transfer",
		Network:          "testnet",
		Status:           models.StatusWaitingForExecution,
		TransactionBytes: []byte{0x01, 0x02},
		ValidStart:       time.Now(),
	}
	require.NoError(
		t,
		db.SaveTransactions([]*models.Transaction{row}, nil),
	)
	return row
}

func TestExecuteTransactionSuccess(t *testing.T) {
	db := newTestDatabase(t)
	tx := seedTransaction(t, db)
	var gotNetwork string
	var gotBytes []byte
	submitter := execution.NewSubmitter(
		db,
		func(_ context.Context, network string, txBytes []byte) error {
			gotNetwork = network
			gotBytes = txBytes
			return nil
		},
		nil,
	)

	require.NoError(
		t,
		submitter.ExecuteTransaction(context.Background(), tx),
	)
	assert.Equal(t, "testnet", gotNetwork)
	assert.Equal(t, []byte{0x01, 0x02}, gotBytes)

	stored, err := db.GetTransaction(tx.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, stored.Status)
	assert.NotNil(t, stored.ExecutedAt)
}

func TestExecuteTransactionFailure(t *testing.T) {
	db := newTestDatabase(t)
	tx := seedTransaction(t, db)
	submitErr := errors.New("network unreachable")
	submitter := execution.NewSubmitter(
		db,
		func(context.Context, string, []byte) error {
			return submitErr
		},
		nil,
	)

	err := submitter.ExecuteTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, submitErr)

	// The failure is recorded, not retried
	stored, err := db.GetTransaction(tx.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
}

func TestExecuteTransactionNoSubmitFunc(t *testing.T) {
	db := newTestDatabase(t)
	tx := seedTransaction(t, db)
	submitter := execution.NewSubmitter(db, nil, nil)

	require.NoError(
		t,
		submitter.ExecuteTransaction(context.Background(), tx),
	)
	stored, err := db.GetTransaction(tx.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, stored.Status)
}
