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
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var ErrInvalidKey = errors.New("invalid key structure")

// Key is a signing requirement: either a single public key or a
// threshold over a list of child keys, nested to arbitrary depth. A node
// with a zero threshold is a plain key list, requiring every child.
type Key struct {
	// PublicKey is set for a leaf key (raw ed25519 public key bytes)
	PublicKey []byte `cbor:"1,keyasint,omitempty"`
	// Threshold is the number of child keys required for an inner node.
	// Zero means all children are required.
	Threshold uint32 `cbor:"2,keyasint,omitempty"`
	// Keys are the children of an inner node
	Keys []Key `cbor:"3,keyasint,omitempty"`
}

// NewSingleKey returns a leaf key node for the given public key
func NewSingleKey(publicKey []byte) Key {
	return Key{PublicKey: publicKey}
}

// NewThresholdKey returns an inner node requiring threshold-of-children
func NewThresholdKey(threshold uint32, keys ...Key) Key {
	return Key{Threshold: threshold, Keys: keys}
}

// NewKeyList returns an inner node requiring every child
func NewKeyList(keys ...Key) Key {
	return Key{Keys: keys}
}

// IsLeaf returns true for a single-public-key node
func (k Key) IsLeaf() bool {
	return len(k.PublicKey) > 0
}

// RequiredCount returns how many children must be satisfied for an
// inner node
func (k Key) RequiredCount() int {
	if k.Threshold > 0 {
		return int(k.Threshold)
	}
	return len(k.Keys)
}

func (k Key) Validate() error {
	if k.IsLeaf() {
		if len(k.Keys) > 0 {
			return fmt.Errorf(
				"%w: leaf key with children",
				ErrInvalidKey,
			)
		}
		if len(k.PublicKey) != ed25519.PublicKeySize {
			return fmt.Errorf(
				"%w: public key size %d",
				ErrInvalidKey,
				len(k.PublicKey),
			)
		}
		return nil
	}
	if len(k.Keys) == 0 {
		return fmt.Errorf("%w: empty key list", ErrInvalidKey)
	}
	if int(k.Threshold) > len(k.Keys) {
		return fmt.Errorf(
			"%w: threshold %d exceeds %d children",
			ErrInvalidKey,
			k.Threshold,
			len(k.Keys),
		)
	}
	for _, child := range k.Keys {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PublicKeys returns every distinct leaf public key in the structure
func (k Key) PublicKeys() [][]byte {
	seen := make(map[string]struct{})
	var out [][]byte
	k.walk(func(publicKey []byte) {
		id := string(publicKey)
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, publicKey)
	})
	return out
}

// ContainsPublicKey reports whether the given public key appears
// anywhere in the structure
func (k Key) ContainsPublicKey(publicKey []byte) bool {
	found := false
	k.walk(func(pk []byte) {
		if string(pk) == string(publicKey) {
			found = true
		}
	})
	return found
}

func (k Key) walk(fn func(publicKey []byte)) {
	if k.IsLeaf() {
		fn(k.PublicKey)
		return
	}
	for _, child := range k.Keys {
		child.walk(fn)
	}
}

// Bytes returns the canonical serialized form of the key structure
func (k Key) Bytes() ([]byte, error) {
	return cborEncMode.Marshal(k)
}

// KeyFromBytes decodes a serialized key structure
func KeyFromBytes(data []byte) (Key, error) {
	var k Key
	if err := cbor.Unmarshal(data, &k); err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return k, nil
}

// PublicKeyToString renders a public key in the hex form used for
// map keys and wire payloads
func PublicKeyToString(publicKey []byte) string {
	return hex.EncodeToString(publicKey)
}

// PublicKeyFromString parses the hex form produced by PublicKeyToString
func PublicKeyFromString(s string) ([]byte, error) {
	publicKey, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf(
			"%w: public key size %d",
			ErrInvalidKey,
			len(publicKey),
		)
	}
	return publicKey, nil
}
