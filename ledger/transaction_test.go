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

package ledger_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
)

func testBody(t *testing.T, validStart time.Time) ledger.TransactionBody {
	t.Helper()
	return ledger.TransactionBody{
		TransactionID: ledger.TransactionID{
			AccountID:  ledger.AccountID{Shard: 0, Realm: 0, Num: 1234},
			ValidStart: validStart,
		},
		Type: ledger.TypeTransfer,
		Memo: "test transfer",
	}
}

func testKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub, priv
}

func TestTransactionFreezeAndRoundTrip(t *testing.T) {
	client, err := ledger.NewClient("testnet")
	require.NoError(t, err)
	defer client.Close()

	validStart := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	tx := ledger.NewTransaction(testBody(t, validStart))
	require.False(t, tx.IsFrozen())
	require.NoError(t, tx.Freeze(client))
	require.True(t, tx.IsFrozen())

	// Freezing assigns node accounts and the default valid duration
	assert.NotEmpty(t, tx.Body.NodeAccountIDs)
	assert.Equal(
		t,
		int64(ledger.DefaultValidDuration.Seconds()),
		tx.Body.ValidDuration,
	)
	// Freezing twice is rejected
	assert.ErrorIs(t, tx.Freeze(client), ledger.ErrAlreadyFrozen)

	data, err := tx.Bytes()
	require.NoError(t, err)
	decoded, err := ledger.TransactionFromBytes(data)
	require.NoError(t, err)
	require.True(t, decoded.IsFrozen())
	assert.Equal(t, tx.Body.TransactionID, decoded.Body.TransactionID)
	assert.Equal(t, tx.Body.Memo, decoded.Body.Memo)

	origBody, err := tx.BodyBytes()
	require.NoError(t, err)
	decodedBody, err := decoded.BodyBytes()
	require.NoError(t, err)
	assert.Equal(t, origBody, decodedBody)
}

func TestTransactionHashStableUnderSigning(t *testing.T) {
	pub, priv := testKeyPair(t)
	tx := ledger.NewTransaction(
		testBody(t, time.Now().Add(time.Hour)),
	)
	require.NoError(t, tx.Freeze(nil))
	hashBefore, err := tx.Hash()
	require.NoError(t, err)

	bodyBytes, err := tx.BodyBytes()
	require.NoError(t, err)
	sig := ed25519.Sign(priv, bodyBytes)
	require.True(t, tx.AddSignature(pub, sig))

	hashAfter, err := tx.Hash()
	require.NoError(t, err)
	assert.Equal(t, hashBefore, hashAfter)
}

func TestTransactionVerifySignature(t *testing.T) {
	pub, priv := testKeyPair(t)
	otherPub, _ := testKeyPair(t)
	tx := ledger.NewTransaction(
		testBody(t, time.Now().Add(time.Hour)),
	)
	require.NoError(t, tx.Freeze(nil))
	bodyBytes, err := tx.BodyBytes()
	require.NoError(t, err)
	sig := ed25519.Sign(priv, bodyBytes)

	assert.NoError(t, tx.VerifySignature(pub, sig))
	assert.ErrorIs(
		t,
		tx.VerifySignature(otherPub, sig),
		ledger.ErrBadSignature,
	)
	assert.ErrorIs(
		t,
		tx.VerifySignature(pub[:16], sig),
		ledger.ErrBadSignature,
	)
}

func TestTransactionAddSignatureIdempotent(t *testing.T) {
	pub, priv := testKeyPair(t)
	tx := ledger.NewTransaction(
		testBody(t, time.Now().Add(time.Hour)),
	)
	require.NoError(t, tx.Freeze(nil))
	bodyBytes, err := tx.BodyBytes()
	require.NoError(t, err)
	sig := ed25519.Sign(priv, bodyBytes)

	assert.True(t, tx.AddSignature(pub, sig))
	assert.False(t, tx.AddSignature(pub, sig))
	assert.Len(t, tx.Signatures, 1)

	signedBy := tx.SignedBy()
	_, ok := signedBy[ledger.PublicKeyToString(pub)]
	assert.True(t, ok)
}

func TestTransactionExpiry(t *testing.T) {
	validStart := time.Now().UTC()
	tx := ledger.NewTransaction(testBody(t, validStart))
	require.NoError(t, tx.Freeze(nil))

	assert.False(t, tx.IsExpiredAt(validStart.Add(time.Minute)))
	assert.True(
		t,
		tx.IsExpiredAt(validStart.Add(3*time.Minute)),
	)
	assert.Equal(
		t,
		validStart.Add(ledger.DefaultValidDuration),
		tx.ExpiresAt(),
	)
}

func TestTransactionOversizeBody(t *testing.T) {
	body := testBody(t, time.Now())
	body.Payload = make([]byte, ledger.MaxBodyBytes+1)
	tx := ledger.NewTransaction(body)
	assert.ErrorIs(t, tx.Freeze(nil), ledger.ErrBodyTooLarge)
}

func TestTransactionFromBytesInvalid(t *testing.T) {
	_, err := ledger.TransactionFromBytes([]byte("not cbor"))
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)
}

func TestTransactionIDRoundTrip(t *testing.T) {
	id := ledger.TransactionID{
		AccountID:  ledger.AccountID{Shard: 0, Realm: 0, Num: 1234},
		ValidStart: time.Unix(1700000000, 1).UTC(),
	}
	assert.Equal(t, "0.0.1234@1700000000.000000001", id.String())
	parsed, err := ledger.ParseTransactionID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ledger.ParseTransactionID("0.0.1234")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransactionID)
	_, err = ledger.ParseTransactionID("bogus@123.456")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransactionID)
}

func TestSignatureMapFlatten(t *testing.T) {
	pub, _ := testKeyPair(t)
	keyHex := ledger.PublicKeyToString(pub)
	sigMap := ledger.SignatureMap{
		"0.0.3": {keyHex: []byte("sig")},
		"0.0.4": {keyHex: []byte("sig")},
	}
	pairs, err := sigMap.Flatten()
	require.NoError(t, err)
	// The same key signing for two nodes collapses to one pair
	require.Len(t, pairs, 1)
	assert.Equal(t, []byte(pub), pairs[0].PublicKey)

	_, err = ledger.SignatureMap{
		"0.0.3": {"zz": []byte("sig")},
	}.Flatten()
	assert.Error(t, err)
}
