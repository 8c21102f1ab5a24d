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

package groups_test

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/event"
	"github.com/yordanove/hedera-transaction-tool-sub000/groups"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
	"github.com/yordanove/hedera-transaction-tool-sub000/lifecycle"
)

type fixture struct {
	db  *database.Database
	bus *event.EventBus
	txs *lifecycle.Service
	svc *groups.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newBusFixture(t, nil)
}

func newBusFixture(t *testing.T, bus *event.EventBus) *fixture {
	t.Helper()
	db, err := database.New(database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	txs := lifecycle.NewService(lifecycle.ServiceConfig{
		Database: db,
		EventBus: bus,
		Network:  "testnet",
	})
	svc := groups.NewService(groups.ServiceConfig{
		Database:  db,
		EventBus:  bus,
		Lifecycle: txs,
	})
	return &fixture{db: db, bus: bus, txs: txs, svc: svc}
}

// eventRecorder collects bus events of one type for assertions
type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *eventRecorder) record(evt event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *eventRecorder) get(i int) event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[i]
}

func seedUser(
	t *testing.T,
	db *database.Database,
	email string,
	pubs ...ed25519.PublicKey,
) *models.User {
	t.Helper()
	user := &models.User{Email: email}
	for _, pub := range pubs {
		user.Keys = append(user.Keys, models.UserKey{PublicKey: pub})
	}
	require.NoError(t, db.SaveUser(user, nil))
	loaded, err := db.GetUser(user.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	return loaded
}

func itemDto(
	t *testing.T,
	name string,
	creatorKeyID uint,
	priv ed25519.PrivateKey,
	validStart time.Time,
) lifecycle.CreateTransactionDto {
	t.Helper()
	tx := ledger.NewTransaction(ledger.TransactionBody{
		TransactionID: ledger.TransactionID{
			AccountID:  ledger.AccountID{Num: 1234},
			ValidStart: validStart,
		},
		NodeAccountIDs: []ledger.AccountID{{Num: 3}},
		Type:           ledger.TypeTransfer,
	})
	require.NoError(t, tx.Freeze(nil))
	txBytes, err := tx.Bytes()
	require.NoError(t, err)
	bodyBytes, err := tx.BodyBytes()
	require.NoError(t, err)
	return lifecycle.CreateTransactionDto{
		Name:             name,
		TransactionBytes: txBytes,
		Signature:        ed25519.Sign(priv, bodyBytes),
		CreatorKeyID:     creatorKeyID,
	}
}

func TestCreateAndGetTransactionGroup(t *testing.T) {
	f := newFixture(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, f.db, "alice@example.com", pub)

	now := time.Now()
	group, err := f.svc.CreateTransactionGroup(
		context.Background(),
		groups.CreateGroupDto{
			Description: "node upgrade batch",
			Atomic:      true,
			Items: []lifecycle.CreateTransactionDto{
				itemDto(t, "first", creator.Keys[0].ID, priv, now),
				itemDto(
					t,
					"second",
					creator.Keys[0].ID,
					priv,
					now.Add(time.Second),
				),
			},
		},
		creator,
	)
	require.NoError(t, err)
	require.NotNil(t, group)
	require.NotZero(t, group.ID)

	view, err := f.svc.GetTransactionGroup(group.ID, creator)
	require.NoError(t, err)
	assert.Equal(t, "node upgrade batch", view.Group.Description)
	assert.True(t, view.Group.Atomic)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "first", view.Items[0].Row.Name)
	assert.Equal(t, 0, view.Items[0].Row.Seq)
	assert.Equal(t, "second", view.Items[1].Row.Name)
	assert.Equal(t, 1, view.Items[1].Row.Seq)
	assert.Equal(
		t,
		"alice@example.com",
		view.Items[0].Row.CreatorEmail,
	)
	assert.Equal(t, creator.ID, view.Items[0].Row.CreatorUserID)
}

func TestGetTransactionGroupUnauthorized(t *testing.T) {
	f := newFixture(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, f.db, "alice@example.com", pub)
	stranger := seedUser(t, f.db, "mallory@example.com")

	group, err := f.svc.CreateTransactionGroup(
		context.Background(),
		groups.CreateGroupDto{
			Items: []lifecycle.CreateTransactionDto{
				itemDto(
					t,
					"first",
					creator.Keys[0].ID,
					priv,
					time.Now(),
				),
			},
		},
		creator,
	)
	require.NoError(t, err)

	// Every item hidden reads the same as a missing group
	_, err = f.svc.GetTransactionGroup(group.ID, stranger)
	assert.ErrorIs(t, err, groups.ErrGroupUnauthorized)
	_, err = f.svc.GetTransactionGroup(99999, stranger)
	assert.ErrorIs(t, err, groups.ErrGroupUnauthorized)
}

func TestGetTransactionGroupPartialVisibility(t *testing.T) {
	f := newFixture(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, f.db, "alice@example.com", pub)
	observer := seedUser(t, f.db, "bob@example.com")

	now := time.Now()
	group, err := f.svc.CreateTransactionGroup(
		context.Background(),
		groups.CreateGroupDto{
			Items: []lifecycle.CreateTransactionDto{
				itemDto(t, "visible", creator.Keys[0].ID, priv, now),
				itemDto(
					t,
					"hidden",
					creator.Keys[0].ID,
					priv,
					now.Add(time.Second),
				),
			},
		},
		creator,
	)
	require.NoError(t, err)

	// The observer is registered on the first item only
	view, err := f.svc.GetTransactionGroup(group.ID, creator)
	require.NoError(t, err)
	require.NoError(t, f.db.CreateObserver(&models.TransactionObserver{
		TransactionID: view.Items[0].Row.TransactionID,
		UserID:        observer.ID,
	}, nil))

	view, err = f.svc.GetTransactionGroup(group.ID, observer)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "visible", view.Items[0].Row.Name)
	require.Len(t, view.Items[0].Observers, 1)
	assert.Equal(
		t,
		observer.ID,
		view.Items[0].Observers[0].UserID,
	)
}

func TestRemoveTransactionGroup(t *testing.T) {
	f := newFixture(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, f.db, "alice@example.com", pub)
	stranger := seedUser(t, f.db, "mallory@example.com")

	group, err := f.svc.CreateTransactionGroup(
		context.Background(),
		groups.CreateGroupDto{
			Items: []lifecycle.CreateTransactionDto{
				itemDto(
					t,
					"first",
					creator.Keys[0].ID,
					priv,
					time.Now(),
				),
			},
		},
		creator,
	)
	require.NoError(t, err)
	view, err := f.svc.GetTransactionGroup(group.ID, creator)
	require.NoError(t, err)
	txID := view.Items[0].Row.TransactionID

	// A non-creator cannot remove, and nothing is touched
	err = f.svc.RemoveTransactionGroup(group.ID, stranger)
	assert.ErrorIs(t, err, lifecycle.ErrUnauthorized)
	stored, err := f.db.GetGroup(group.ID, nil)
	require.NoError(t, err)
	assert.NotNil(t, stored)

	require.NoError(t, f.svc.RemoveTransactionGroup(group.ID, creator))

	stored, err = f.db.GetGroup(group.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, stored)
	tx, err := f.db.GetTransaction(txID, nil)
	require.NoError(t, err)
	assert.Nil(t, tx)

	err = f.svc.RemoveTransactionGroup(group.ID, creator)
	assert.ErrorIs(t, err, groups.ErrGroupNotFound)
}

func TestCreateTransactionGroupRejectedAsUnit(t *testing.T) {
	f := newFixture(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, f.db, "alice@example.com", pub)

	now := time.Now()
	bad := itemDto(t, "second", creator.Keys[0].ID+100, priv, now.Add(time.Second))
	_, err = f.svc.CreateTransactionGroup(
		context.Background(),
		groups.CreateGroupDto{
			Items: []lifecycle.CreateTransactionDto{
				itemDto(t, "first", creator.Keys[0].ID, priv, now),
				bad,
			},
		},
		creator,
	)
	require.Error(t, err)

	// A failed admission leaves neither transactions nor a group behind
	_, total, err := f.db.ListTransactions(database.ListParams{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	var groupCount int64
	require.NoError(
		t,
		f.db.DB().Model(&models.TransactionGroup{}).Count(&groupCount).Error,
	)
	assert.Equal(t, int64(0), groupCount)
}

func TestCreateTransactionGroupBatchedEvent(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	f := newBusFixture(t, bus)
	recorder := &eventRecorder{}
	bus.SubscribeFunc(
		event.TransactionStatusUpdateEventType,
		recorder.record,
	)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, f.db, "alice@example.com", pub)

	now := time.Now()
	_, err = f.svc.CreateTransactionGroup(
		context.Background(),
		groups.CreateGroupDto{
			Items: []lifecycle.CreateTransactionDto{
				itemDto(t, "first", creator.Keys[0].ID, priv, now),
				itemDto(
					t,
					"second",
					creator.Keys[0].ID,
					priv,
					now.Add(time.Second),
				),
			},
		},
		creator,
	)
	require.NoError(t, err)

	// One status update announces the whole group
	require.Eventually(t, func() bool {
		return recorder.len() >= 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, recorder.len())
	payload, ok := recorder.get(0).Data.(event.TransactionStatusUpdateEvent)
	require.True(t, ok)
	assert.Len(t, payload.Entries, 2)
}

func TestRemoveTransactionGroupBatchedEvent(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	f := newBusFixture(t, bus)
	recorder := &eventRecorder{}
	bus.SubscribeFunc(
		event.TransactionUpdateEventType,
		recorder.record,
	)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, f.db, "alice@example.com", pub)

	now := time.Now()
	group, err := f.svc.CreateTransactionGroup(
		context.Background(),
		groups.CreateGroupDto{
			Items: []lifecycle.CreateTransactionDto{
				itemDto(t, "first", creator.Keys[0].ID, priv, now),
				itemDto(
					t,
					"second",
					creator.Keys[0].ID,
					priv,
					now.Add(time.Second),
				),
			},
		},
		creator,
	)
	require.NoError(t, err)
	view, err := f.svc.GetTransactionGroup(group.ID, creator)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	txIds := []uint{
		view.Items[0].Row.TransactionID,
		view.Items[1].Row.TransactionID,
	}

	require.NoError(t, f.svc.RemoveTransactionGroup(group.ID, creator))

	// One plain update covers every removed member
	require.Eventually(t, func() bool {
		return recorder.len() >= 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, recorder.len())
	payload, ok := recorder.get(0).Data.(event.TransactionUpdateEvent)
	require.True(t, ok)
	require.Len(t, payload.Entries, 2)
	gotIds := []uint{
		payload.Entries[0].EntityID,
		payload.Entries[1].EntityID,
	}
	assert.ElementsMatch(t, txIds, gotIds)

	// Nothing survives the removal
	for _, id := range txIds {
		tx, err := f.db.GetTransaction(id, nil)
		require.NoError(t, err)
		assert.Nil(t, tx)
	}
	items, err := f.db.GetGroupItems(group.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}
