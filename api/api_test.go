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

package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordanove/hedera-transaction-tool-sub000/approvals"
	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/groups"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
	"github.com/yordanove/hedera-transaction-tool-sub000/lifecycle"
	"github.com/yordanove/hedera-transaction-tool-sub000/signing"
)

type testEnv struct {
	api *Api
	db  *database.Database
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	txs := lifecycle.NewService(lifecycle.ServiceConfig{
		Database: db,
		Network:  "testnet",
	})
	merger := signing.NewMerger(signing.MergerConfig{
		Database:    db,
		Access:      txs,
		Reevaluator: txs,
	})
	grp := groups.NewService(groups.ServiceConfig{
		Database:  db,
		Lifecycle: txs,
	})
	approvalSvc := approvals.NewService(db, nil, nil)
	api := New(
		Config{ListenAddress: ":0"},
		db,
		txs,
		merger,
		grp,
		approvalSvc,
		nil,
	)
	return &testEnv{api: api, db: db}
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

// createRequest builds an admissible create request signed by the
// given creator key
func createRequest(
	t *testing.T,
	name string,
	creatorKeyID uint,
	priv ed25519.PrivateKey,
	validStart time.Time,
	signingKey *ledger.Key,
) CreateTransactionRequest {
	t.Helper()
	tx := ledger.NewTransaction(ledger.TransactionBody{
		TransactionID: ledger.TransactionID{
			AccountID:  ledger.AccountID{Num: 1234},
			ValidStart: validStart,
		},
		NodeAccountIDs: []ledger.AccountID{{Num: 3}},
		Type:           ledger.TypeTransfer,
		SigningKey:     signingKey,
	})
	require.NoError(t, tx.Freeze(nil))
	txBytes, err := tx.Bytes()
	require.NoError(t, err)
	bodyBytes, err := tx.BodyBytes()
	require.NoError(t, err)
	return CreateTransactionRequest{
		Name:             name,
		TransactionBytes: txBytes,
		Signature:        ed25519.Sign(priv, bodyBytes),
		CreatorKeyID:     creatorKeyID,
	}
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func asUser(req *http.Request, user *models.User) *http.Request {
	req.Header.Set(UserIDHeader, strconv.Itoa(int(user.ID)))
	return req
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, env.api.Start(ctx))
	err := env.api.Start(ctx)
	assert.Error(t, err, "double start is rejected")
	require.NoError(t, env.api.Stop(context.Background()))
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	env.api.handleHealth(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var resp HealthResponse
	require.NoError(
		t,
		json.Unmarshal(recorder.Body.Bytes(), &resp),
	)
	assert.True(t, resp.Healthy)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "non-numeric id", header: "abc"},
		{name: "unknown user", header: "99999"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(
				http.MethodGet,
				"/api/v1/transactions",
				nil,
			)
			if test.header != "" {
				req.Header.Set(UserIDHeader, test.header)
			}
			env.api.handleListTransactions(recorder, req)
			assert.Equal(
				t,
				http.StatusUnauthorized,
				recorder.Code,
			)
		})
	}
}

func TestCreateAndGetTransaction(t *testing.T) {
	env := newTestEnv(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, env.db, "alice@example.com", pub)
	stranger := seedUser(t, env.db, "mallory@example.com")

	recorder := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(
		http.MethodPost,
		"/api/v1/transactions",
		jsonBody(t, createRequest(
			t,
			"transfer",
			creator.Keys[0].ID,
			priv,
			time.Now(),
			nil,
		)),
	), creator)
	env.api.handleCreateTransaction(recorder, req)
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created TransactionResponse
	require.NoError(
		t,
		json.Unmarshal(recorder.Body.Bytes(), &created),
	)
	assert.Equal(t, "transfer", created.Name)
	assert.Equal(t, "TRANSFER", created.Type)
	assert.Equal(
		t,
		models.StatusWaitingForExecution,
		created.Status,
	)

	// Detail view for the creator
	recorder = httptest.NewRecorder()
	req = asUser(httptest.NewRequest(
		http.MethodGet,
		"/api/v1/transactions/1",
		nil,
	), creator)
	req.SetPathValue("id", strconv.Itoa(int(created.ID)))
	env.api.handleGetTransaction(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
	var detail TransactionDetailResponse
	require.NoError(
		t,
		json.Unmarshal(recorder.Body.Bytes(), &detail),
	)
	assert.Equal(t, created.ID, detail.Transaction.ID)

	// A probing stranger cannot tell the transaction exists
	recorder = httptest.NewRecorder()
	req = asUser(httptest.NewRequest(
		http.MethodGet,
		"/api/v1/transactions/1",
		nil,
	), stranger)
	req.SetPathValue("id", strconv.Itoa(int(created.ID)))
	env.api.handleGetTransaction(recorder, req)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCreateTransactionInvalidBody(t *testing.T) {
	env := newTestEnv(t)
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, env.db, "alice@example.com", pub)

	recorder := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(
		http.MethodPost,
		"/api/v1/transactions",
		bytes.NewReader([]byte("not json")),
	), creator)
	env.api.handleCreateTransaction(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestImportSignaturesHandler(t *testing.T) {
	env := newTestEnv(t)
	creatorPub, creatorPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signerPub, signerPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, env.db, "alice@example.com", creatorPub)
	signer := seedUser(t, env.db, "bob@example.com", signerPub)

	signingKey := ledger.NewSingleKey(signerPub)
	createReq := createRequest(
		t,
		"needs bob",
		creator.Keys[0].ID,
		creatorPriv,
		time.Now(),
		&signingKey,
	)
	recorder := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(
		http.MethodPost,
		"/api/v1/transactions",
		jsonBody(t, createReq),
	), creator)
	env.api.handleCreateTransaction(recorder, req)
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created TransactionResponse
	require.NoError(
		t,
		json.Unmarshal(recorder.Body.Bytes(), &created),
	)
	require.Equal(
		t,
		models.StatusWaitingForSignatures,
		created.Status,
	)

	decoded, err := ledger.TransactionFromBytes(
		createReq.TransactionBytes,
	)
	require.NoError(t, err)
	bodyBytes, err := decoded.BodyBytes()
	require.NoError(t, err)
	sigMap := ledger.SignatureMap{
		"0.0.3": {
			ledger.PublicKeyToString(signerPub): ed25519.Sign(
				signerPriv,
				bodyBytes,
			),
		},
	}

	recorder = httptest.NewRecorder()
	req = asUser(httptest.NewRequest(
		http.MethodPost,
		"/api/v1/transactions/signatures",
		jsonBody(t, ImportSignaturesRequest{
			Entries: []ImportSignaturesEntry{
				{
					TransactionID: created.ID,
					SignatureMap:  sigMap,
				},
				{
					TransactionID: 99999,
					SignatureMap:  sigMap,
				},
			},
		}),
	), signer)
	env.api.handleImportSignatures(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp ImportSignaturesResponse
	require.NoError(
		t,
		json.Unmarshal(recorder.Body.Bytes(), &resp),
	)
	require.Len(t, resp.Results, 2)
	assert.Empty(t, resp.Results[0].Error)
	assert.NotEmpty(t, resp.Results[1].Error)

	// The satisfied transaction advanced to waiting for execution
	stored, err := env.db.GetTransaction(created.ID, nil)
	require.NoError(t, err)
	assert.Equal(
		t,
		models.StatusWaitingForExecution,
		stored.Status,
	)
}

func TestCancelTransactionHandler(t *testing.T) {
	env := newTestEnv(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creator := seedUser(t, env.db, "alice@example.com", pub)
	stranger := seedUser(t, env.db, "mallory@example.com")

	recorder := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(
		http.MethodPost,
		"/api/v1/transactions",
		jsonBody(t, createRequest(
			t,
			"transfer",
			creator.Keys[0].ID,
			priv,
			time.Now(),
			nil,
		)),
	), creator)
	env.api.handleCreateTransaction(recorder, req)
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created TransactionResponse
	require.NoError(
		t,
		json.Unmarshal(recorder.Body.Bytes(), &created),
	)
	id := strconv.Itoa(int(created.ID))

	cancel := func(user *models.User) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		req := asUser(httptest.NewRequest(
			http.MethodPost,
			"/api/v1/transactions/"+id+"/cancel",
			nil,
		), user)
		req.SetPathValue("id", id)
		env.api.handleCancelTransaction(recorder, req)
		return recorder
	}

	assert.Equal(t, http.StatusForbidden, cancel(stranger).Code)
	assert.Equal(t, http.StatusNoContent, cancel(creator).Code)
	// Terminal transactions never transition again
	assert.Equal(t, http.StatusBadRequest, cancel(creator).Code)
}
