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

package ledger

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

const (
	// MaxBodyBytes is the maximum allowed size of a serialized
	// transaction body accepted by the network
	MaxBodyBytes = 6144

	// DefaultValidDuration is the window after valid-start during
	// which the network accepts the transaction
	DefaultValidDuration = 120 * time.Second
)

var (
	ErrInvalidTransaction = errors.New("invalid transaction bytes")
	ErrNotFrozen          = errors.New("transaction is not frozen")
	ErrAlreadyFrozen      = errors.New("transaction is already frozen")
	ErrBodyTooLarge       = errors.New("transaction body too large")
	ErrBadSignature       = errors.New("signature verification failed")
)

// cborEncMode is the deterministic encoding used for every serialized
// ledger structure, so byte representations are stable across encodes
var cborEncMode, _ = cbor.CoreDetEncOptions().EncMode()

// TransactionBody holds the signed portion of a transaction. Signatures
// are always made over the serialized body, never the outer envelope.
type TransactionBody struct {
	TransactionID  TransactionID   `cbor:"1,keyasint"`
	NodeAccountIDs []AccountID     `cbor:"2,keyasint,omitempty"`
	ValidDuration  int64           `cbor:"3,keyasint,omitempty"` // seconds
	Memo           string          `cbor:"4,keyasint,omitempty"`
	Type           TransactionType `cbor:"5,keyasint"`
	Payload        []byte          `cbor:"6,keyasint,omitempty"`
	// SigningKey is the declared signing requirement for this
	// transaction. Absent means no requirement beyond the creator.
	SigningKey *Key   `cbor:"7,keyasint,omitempty"`
	MaxFee     uint64 `cbor:"8,keyasint,omitempty"`
}

// SignaturePair binds a public key to its signature over the body bytes
type SignaturePair struct {
	PublicKey []byte `cbor:"1,keyasint"`
	Signature []byte `cbor:"2,keyasint"`
}

// envelope is the outer wire form: opaque body bytes plus accumulated
// signature pairs. Keeping the body opaque preserves byte-for-byte
// stability of the signed payload as signatures are merged in.
type envelope struct {
	BodyBytes []byte          `cbor:"1,keyasint"`
	SigPairs  []SignaturePair `cbor:"2,keyasint,omitempty"`
}

// Transaction is a decoded network transaction with its accumulated
// signatures
type Transaction struct {
	Body       TransactionBody
	Signatures []SignaturePair

	frozen    bool
	bodyBytes []byte
}

// NewTransaction builds an unfrozen transaction from a body
func NewTransaction(body TransactionBody) *Transaction {
	return &Transaction{Body: body}
}

// TransactionFromBytes decodes the wire form produced by Bytes. The
// result is frozen, since serialized transactions always are.
func TransactionFromBytes(data []byte) (*Transaction, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	var body TransactionBody
	if err := cbor.Unmarshal(env.BodyBytes, &body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	return &Transaction{
		Body:       body,
		Signatures: env.SigPairs,
		frozen:     true,
		bodyBytes:  env.BodyBytes,
	}, nil
}

// Freeze fixes the transaction body for signing. Node account ids are
// taken from the client when the body does not name any. After freezing
// the body bytes never change; only signatures accumulate.
func (t *Transaction) Freeze(client *Client) error {
	if t.frozen {
		return ErrAlreadyFrozen
	}
	if client != nil && len(t.Body.NodeAccountIDs) == 0 {
		t.Body.NodeAccountIDs = client.Nodes()
	}
	if t.Body.ValidDuration == 0 {
		t.Body.ValidDuration = int64(DefaultValidDuration.Seconds())
	}
	bodyBytes, err := cborEncMode.Marshal(t.Body)
	if err != nil {
		return fmt.Errorf("freeze: %w", err)
	}
	if len(bodyBytes) > MaxBodyBytes {
		return fmt.Errorf(
			"%w: %d bytes",
			ErrBodyTooLarge,
			len(bodyBytes),
		)
	}
	t.bodyBytes = bodyBytes
	t.frozen = true
	return nil
}

// IsFrozen reports whether the body bytes are fixed
func (t *Transaction) IsFrozen() bool {
	return t.frozen
}

// BodyBytes returns the canonical signed payload
func (t *Transaction) BodyBytes() ([]byte, error) {
	if !t.frozen {
		return nil, ErrNotFrozen
	}
	return t.bodyBytes, nil
}

// Bytes returns the wire form of the transaction including signatures
func (t *Transaction) Bytes() ([]byte, error) {
	if !t.frozen {
		return nil, ErrNotFrozen
	}
	return cborEncMode.Marshal(envelope{
		BodyBytes: t.bodyBytes,
		SigPairs:  t.Signatures,
	})
}

// Hash returns the content hash of the transaction: blake2b-256 over
// the body bytes, stable under signature merging
func (t *Transaction) Hash() ([]byte, error) {
	if !t.frozen {
		return nil, ErrNotFrozen
	}
	sum := blake2b.Sum256(t.bodyBytes)
	return sum[:], nil
}

// VerifySignature checks the given signature over the body bytes
func (t *Transaction) VerifySignature(
	publicKey []byte,
	signature []byte,
) error {
	if !t.frozen {
		return ErrNotFrozen
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf(
			"%w: public key size %d",
			ErrBadSignature,
			len(publicKey),
		)
	}
	if !ed25519.Verify(publicKey, t.bodyBytes, signature) {
		return ErrBadSignature
	}
	return nil
}

// AddSignature appends a signature pair. Adding a signature for a
// public key that has already signed is a no-op; the return value
// reports whether the set changed.
func (t *Transaction) AddSignature(
	publicKey []byte,
	signature []byte,
) bool {
	for _, pair := range t.Signatures {
		if string(pair.PublicKey) == string(publicKey) {
			return false
		}
	}
	t.Signatures = append(t.Signatures, SignaturePair{
		PublicKey: publicKey,
		Signature: signature,
	})
	return true
}

// SignedBy returns the set of public keys with a signature present,
// keyed by their hex form
func (t *Transaction) SignedBy() map[string]struct{} {
	out := make(map[string]struct{}, len(t.Signatures))
	for _, pair := range t.Signatures {
		out[PublicKeyToString(pair.PublicKey)] = struct{}{}
	}
	return out
}

// ValidStart returns the earliest moment the transaction may execute
func (t *Transaction) ValidStart() time.Time {
	return t.Body.TransactionID.ValidStart
}

// ExpiresAt returns the end of the network acceptance window
func (t *Transaction) ExpiresAt() time.Time {
	duration := time.Duration(t.Body.ValidDuration) * time.Second
	if duration == 0 {
		duration = DefaultValidDuration
	}
	return t.Body.TransactionID.ValidStart.Add(duration)
}

// IsExpiredAt reports whether the acceptance window has passed
func (t *Transaction) IsExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt())
}

// SignatureMap maps node account id to public key (hex) to raw
// signature bytes, the shape produced by client-side signing tools
type SignatureMap map[string]map[string][]byte

// Flatten returns each distinct public key/signature pair in the map.
// The same key signing for multiple nodes collapses to one pair since
// all nodes share the same signed body bytes.
func (m SignatureMap) Flatten() ([]SignaturePair, error) {
	seen := make(map[string]struct{})
	var out []SignaturePair
	for _, byKey := range m {
		for keyHex, signature := range byKey {
			if _, ok := seen[keyHex]; ok {
				continue
			}
			publicKey, err := PublicKeyFromString(keyHex)
			if err != nil {
				return nil, err
			}
			seen[keyHex] = struct{}{}
			out = append(out, SignaturePair{
				PublicKey: publicKey,
				Signature: signature,
			})
		}
	}
	return out, nil
}
