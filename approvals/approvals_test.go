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

package approvals_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordanove/hedera-transaction-tool-sub000/approvals"
	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
)

func uintPtr(v uint) *uint {
	return &v
}

func u32Ptr(v uint32) *uint32 {
	return &v
}

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func seedUser(
	t *testing.T,
	db *database.Database,
	email string,
) *models.User {
	t.Helper()
	user := &models.User{Email: email}
	require.NoError(t, db.SaveUser(user, nil))
	return user
}

func seedTransaction(
	t *testing.T,
	db *database.Database,
) *models.Transaction {
	t.Helper()
	row := &models.Transaction{
		TransactionID: "0.0.1234@1700000000.000000000",
		Name:          "transfer",
		Network:       "testnet",
		Status:        models.StatusWaitingForSignatures,
		ValidStart:    time.Now(),
	}
	require.NoError(
		t,
		db.SaveTransactions([]*models.Transaction{row}, nil),
	)
	return row
}

func TestBuildTree(t *testing.T) {
	rows := []database.ApproverRow{
		{ID: 1, Threshold: u32Ptr(2)},
		{ID: 2, ListID: uintPtr(1), UserID: uintPtr(10)},
		{ID: 3, ListID: uintPtr(1), UserID: uintPtr(11)},
		{ID: 4, UserID: uintPtr(12)},
		// Orphan pointing at a removed parent
		{ID: 5, ListID: uintPtr(99), UserID: uintPtr(13)},
	}
	roots := approvals.BuildTree(rows)
	require.Len(t, roots, 2)
	assert.Equal(t, uint(1), roots[0].Row.ID)
	assert.Len(t, roots[0].Children, 2)
	assert.Equal(t, uint(4), roots[1].Row.ID)
	assert.Empty(t, roots[1].Children)
}

func TestUserNeedsToApprove(t *testing.T) {
	assert.False(
		t,
		approvals.UserNeedsToApprove(nil, 10),
	)
	assert.True(t, approvals.UserNeedsToApprove(
		[]database.ApproverRow{
			{ID: 1, UserID: uintPtr(10)},
		},
		10,
	))
	assert.False(t, approvals.UserNeedsToApprove(
		[]database.ApproverRow{
			{ID: 1, UserID: uintPtr(11)},
		},
		10,
	))
	// One recorded signature clears every slot the user holds
	assert.False(t, approvals.UserNeedsToApprove(
		[]database.ApproverRow{
			{ID: 1, UserID: uintPtr(10)},
			{ID: 2, UserID: uintPtr(10), Signature: []byte{0x01}},
		},
		10,
	))
}

func TestCreateApproversNested(t *testing.T) {
	db := newTestDatabase(t)
	svc := approvals.NewService(db, nil, nil)
	first := seedUser(t, db, "alice@example.com")
	second := seedUser(t, db, "bob@example.com")
	tx := seedTransaction(t, db)

	err := svc.CreateApprovers(tx.ID, []approvals.ApproverDto{
		{
			Threshold: u32Ptr(1),
			Approvers: []approvals.ApproverDto{
				{UserID: &first.ID},
				{UserID: &second.ID},
			},
		},
	})
	require.NoError(t, err)

	rows, err := db.GetApproverTree(tx.ID, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	roots := approvals.BuildTree(rows)
	require.Len(t, roots, 1)
	// Only the root row carries the transaction id
	require.NotNil(t, roots[0].Row.TransactionID)
	assert.Equal(t, tx.ID, *roots[0].Row.TransactionID)
	require.Len(t, roots[0].Children, 2)
	for _, child := range roots[0].Children {
		assert.Nil(t, child.Row.TransactionID)
		require.NotNil(t, child.Row.ListID)
		assert.Equal(t, roots[0].Row.ID, *child.Row.ListID)
	}

	// Both nested users are discoverable as pending approvers
	ids, err := db.GetUserApproverTransactionIDs(first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{tx.ID}, ids)
	ids, err = db.GetUserApproverTransactionIDs(second.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{tx.ID}, ids)
}

func TestCreateApproversUnknownTransaction(t *testing.T) {
	db := newTestDatabase(t)
	svc := approvals.NewService(db, nil, nil)
	user := seedUser(t, db, "alice@example.com")

	err := svc.CreateApprovers(99999, []approvals.ApproverDto{
		{UserID: &user.ID},
	})
	assert.ErrorIs(t, err, approvals.ErrTransactionNotFound)
}

func TestApprove(t *testing.T) {
	db := newTestDatabase(t)
	svc := approvals.NewService(db, nil, nil)
	user := seedUser(t, db, "alice@example.com")
	tx := seedTransaction(t, db)
	require.NoError(t, svc.CreateApprovers(
		tx.ID,
		[]approvals.ApproverDto{{UserID: &user.ID}},
	))

	pending, err := svc.ShouldApproveTransaction(tx.ID, user)
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, svc.Approve(tx.ID, user, []byte{0xAA}, true))

	pending, err = svc.ShouldApproveTransaction(tx.ID, user)
	require.NoError(t, err)
	assert.False(t, pending)

	rows, err := db.GetApproverTree(tx.ID, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []byte{0xAA}, rows[0].Signature)
	require.NotNil(t, rows[0].Approved)
	assert.True(t, *rows[0].Approved)

	// An approval still leaves the transaction collecting signatures
	stored, err := db.GetTransaction(tx.ID, nil)
	require.NoError(t, err)
	assert.Equal(
		t,
		models.StatusWaitingForSignatures,
		stored.Status,
	)

	// A second decision finds no unsigned slot
	err = svc.Approve(tx.ID, user, []byte{0xBB}, true)
	assert.ErrorIs(t, err, approvals.ErrTransactionNotFound)
}

func TestApproveDenialRejects(t *testing.T) {
	db := newTestDatabase(t)
	svc := approvals.NewService(db, nil, nil)
	user := seedUser(t, db, "alice@example.com")
	tx := seedTransaction(t, db)
	require.NoError(t, svc.CreateApprovers(
		tx.ID,
		[]approvals.ApproverDto{{UserID: &user.ID}},
	))

	require.NoError(t, svc.Approve(tx.ID, user, []byte{0xAA}, false))

	stored, err := db.GetTransaction(tx.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)
}
