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
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// TransactionType enumerates the transaction kinds the coordinator
// understands
type TransactionType uint

const (
	TypeUnknown TransactionType = iota
	TypeAccountCreate
	TypeAccountUpdate
	TypeAccountDelete
	TypeTransfer
	TypeAllowanceApprove
	TypeFileCreate
	TypeFileUpdate
	TypeFileAppend
	TypeNodeCreate
	TypeNodeUpdate
	TypeNodeDelete
	TypeFreeze
	TypeSystemDelete
)

func (t TransactionType) String() string {
	switch t {
	case TypeAccountCreate:
		return "ACCOUNT CREATE"
	case TypeAccountUpdate:
		return "ACCOUNT UPDATE"
	case TypeAccountDelete:
		return "ACCOUNT DELETE"
	case TypeTransfer:
		return "TRANSFER"
	case TypeAllowanceApprove:
		return "ALLOWANCE APPROVE"
	case TypeFileCreate:
		return "FILE CREATE"
	case TypeFileUpdate:
		return "FILE UPDATE"
	case TypeFileAppend:
		return "FILE APPEND"
	case TypeNodeCreate:
		return "NODE CREATE"
	case TypeNodeUpdate:
		return "NODE UPDATE"
	case TypeNodeDelete:
		return "NODE DELETE"
	case TypeFreeze:
		return "FREEZE"
	case TypeSystemDelete:
		return "SYSTEM DELETE"
	default:
		return "UNKNOWN"
	}
}

// AccountUpdatePayload is the body payload for an account update,
// including an optional key rotation
type AccountUpdatePayload struct {
	AccountID AccountID `cbor:"1,keyasint"`
	NewKey    *Key      `cbor:"2,keyasint,omitempty"`
	Memo      string    `cbor:"3,keyasint,omitempty"`
}

// NodeCreatePayload is the body payload for registering a consensus
// node, carrying its admin key
type NodeCreatePayload struct {
	AccountID   AccountID `cbor:"1,keyasint"`
	Description string    `cbor:"2,keyasint,omitempty"`
	AdminKey    *Key      `cbor:"3,keyasint,omitempty"`
}

// NodeUpdatePayload is the body payload for updating a consensus node,
// including an optional admin key rotation
type NodeUpdatePayload struct {
	NodeID      uint64 `cbor:"1,keyasint"`
	Description string `cbor:"2,keyasint,omitempty"`
	AdminKey    *Key   `cbor:"3,keyasint,omitempty"`
}

// NewKeys extracts any public keys newly introduced by a key-rotation
// style transaction (account update, node create/update). Other types
// introduce no keys. Callers treat extraction failures as "no new
// keys"; this only errors on undecodable payloads for the types that
// carry keys.
func NewKeys(t *Transaction) ([][]byte, error) {
	var key *Key
	switch t.Body.Type {
	case TypeAccountUpdate:
		var payload AccountUpdatePayload
		if err := cbor.Unmarshal(t.Body.Payload, &payload); err != nil {
			return nil, fmt.Errorf(
				"decode account update payload: %w",
				err,
			)
		}
		key = payload.NewKey
	case TypeNodeCreate:
		var payload NodeCreatePayload
		if err := cbor.Unmarshal(t.Body.Payload, &payload); err != nil {
			return nil, fmt.Errorf(
				"decode node create payload: %w",
				err,
			)
		}
		key = payload.AdminKey
	case TypeNodeUpdate:
		var payload NodeUpdatePayload
		if err := cbor.Unmarshal(t.Body.Payload, &payload); err != nil {
			return nil, fmt.Errorf(
				"decode node update payload: %w",
				err,
			)
		}
		key = payload.AdminKey
	default:
		return nil, nil
	}
	if key == nil {
		return nil, nil
	}
	return key.PublicKeys(), nil
}
