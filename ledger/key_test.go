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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
)

func newTestPub(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}

func TestKeyValidate(t *testing.T) {
	pub1 := newTestPub(t)
	pub2 := newTestPub(t)

	assert.NoError(t, ledger.NewSingleKey(pub1).Validate())
	assert.NoError(
		t,
		ledger.NewThresholdKey(
			1,
			ledger.NewSingleKey(pub1),
			ledger.NewSingleKey(pub2),
		).Validate(),
	)
	assert.NoError(
		t,
		ledger.NewKeyList(
			ledger.NewSingleKey(pub1),
			ledger.NewSingleKey(pub2),
		).Validate(),
	)

	// Truncated public key
	assert.ErrorIs(
		t,
		ledger.NewSingleKey(pub1[:8]).Validate(),
		ledger.ErrInvalidKey,
	)
	// Empty inner node
	assert.ErrorIs(
		t,
		ledger.NewKeyList().Validate(),
		ledger.ErrInvalidKey,
	)
	// Threshold larger than the child count
	assert.ErrorIs(
		t,
		ledger.NewThresholdKey(
			3,
			ledger.NewSingleKey(pub1),
			ledger.NewSingleKey(pub2),
		).Validate(),
		ledger.ErrInvalidKey,
	)
}

func TestKeyRequiredCount(t *testing.T) {
	pub1 := newTestPub(t)
	pub2 := newTestPub(t)
	// Zero threshold means every child is required
	list := ledger.NewKeyList(
		ledger.NewSingleKey(pub1),
		ledger.NewSingleKey(pub2),
	)
	assert.Equal(t, 2, list.RequiredCount())
	threshold := ledger.NewThresholdKey(
		1,
		ledger.NewSingleKey(pub1),
		ledger.NewSingleKey(pub2),
	)
	assert.Equal(t, 1, threshold.RequiredCount())
}

func TestKeyPublicKeysDedup(t *testing.T) {
	pub1 := newTestPub(t)
	pub2 := newTestPub(t)
	// pub1 appears at two depths but is reported once
	key := ledger.NewThresholdKey(
		1,
		ledger.NewSingleKey(pub1),
		ledger.NewKeyList(
			ledger.NewSingleKey(pub1),
			ledger.NewSingleKey(pub2),
		),
	)
	keys := key.PublicKeys()
	assert.Len(t, keys, 2)
	assert.True(t, key.ContainsPublicKey(pub1))
	assert.True(t, key.ContainsPublicKey(pub2))
	assert.False(t, key.ContainsPublicKey(newTestPub(t)))
}

func TestKeyBytesRoundTrip(t *testing.T) {
	pub1 := newTestPub(t)
	pub2 := newTestPub(t)
	key := ledger.NewThresholdKey(
		2,
		ledger.NewSingleKey(pub1),
		ledger.NewSingleKey(pub2),
		ledger.NewThresholdKey(
			1,
			ledger.NewSingleKey(newTestPub(t)),
			ledger.NewSingleKey(newTestPub(t)),
		),
	)
	data, err := key.Bytes()
	require.NoError(t, err)
	decoded, err := ledger.KeyFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, key, decoded)

	_, err = ledger.KeyFromBytes([]byte("junk"))
	assert.ErrorIs(t, err, ledger.ErrInvalidKey)
}

func TestPublicKeyStringRoundTrip(t *testing.T) {
	pub := newTestPub(t)
	s := ledger.PublicKeyToString(pub)
	decoded, err := ledger.PublicKeyFromString(s)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), decoded)

	_, err = ledger.PublicKeyFromString("nothex")
	assert.ErrorIs(t, err, ledger.ErrInvalidKey)
	_, err = ledger.PublicKeyFromString("abcd")
	assert.ErrorIs(t, err, ledger.ErrInvalidKey)
}
