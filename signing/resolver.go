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

package signing

import (
	"slices"

	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
)

// KeysRequiredToSign computes which of the user's keys are still
// required to make progress toward satisfying the transaction's
// signing key structure, given the signatures already collected.
//
// With showAll false, keys inside a subtree that other signers have
// already satisfied are omitted: no more signatures are required there
// and the user should not be prompted for them. With showAll true,
// every user key appearing anywhere in the structure is returned
// regardless of satisfaction, answering "could this user ever matter"
// rather than "is a signature currently needed".
//
// A nil key structure means the transaction has no signing requirement
// beyond its creator, so no keys are ever required.
func KeysRequiredToSign(
	signingKey *ledger.Key,
	signedBy map[string]struct{},
	userKeys []models.UserKey,
	showAll bool,
) []uint {
	if signingKey == nil || len(userKeys) == 0 {
		return nil
	}
	owned := make(map[string][]uint, len(userKeys))
	for _, userKey := range userKeys {
		keyHex := ledger.PublicKeyToString(userKey.PublicKey)
		owned[keyHex] = append(owned[keyHex], userKey.ID)
	}
	found := make(map[uint]struct{})
	if showAll {
		for _, publicKey := range signingKey.PublicKeys() {
			keyHex := ledger.PublicKeyToString(publicKey)
			for _, id := range owned[keyHex] {
				found[id] = struct{}{}
			}
		}
	} else {
		_, required := resolve(*signingKey, signedBy, owned)
		for id := range required {
			found[id] = struct{}{}
		}
	}
	out := make([]uint, 0, len(found))
	for id := range found {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// resolve recursively reports whether the subtree is satisfied and, if
// not, which of the user's key ids appear in its still-outstanding
// parts. A satisfied subtree contributes no keys: its requirement is
// already met.
func resolve(
	key ledger.Key,
	signedBy map[string]struct{},
	owned map[string][]uint,
) (bool, map[uint]struct{}) {
	if key.IsLeaf() {
		keyHex := ledger.PublicKeyToString(key.PublicKey)
		if _, ok := signedBy[keyHex]; ok {
			return true, nil
		}
		required := make(map[uint]struct{})
		for _, id := range owned[keyHex] {
			required[id] = struct{}{}
		}
		return false, required
	}
	satisfiedCount := 0
	required := make(map[uint]struct{})
	for _, child := range key.Keys {
		childSatisfied, childKeys := resolve(child, signedBy, owned)
		if childSatisfied {
			satisfiedCount++
			continue
		}
		for id := range childKeys {
			required[id] = struct{}{}
		}
	}
	if satisfiedCount >= key.RequiredCount() {
		return true, nil
	}
	return false, required
}

// IsSatisfied reports whether the signing key structure is fully
// satisfied by the collected signatures
func IsSatisfied(
	signingKey *ledger.Key,
	signedBy map[string]struct{},
) bool {
	if signingKey == nil {
		return true
	}
	satisfied, _ := resolve(*signingKey, signedBy, nil)
	return satisfied
}
