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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidAccountID = errors.New("invalid account id")

var ErrInvalidTransactionID = errors.New("invalid transaction id")

// AccountID identifies an account on the network as shard.realm.num
type AccountID struct {
	Shard uint64
	Realm uint64
	Num   uint64
}

func (a AccountID) String() string {
	return fmt.Sprintf("%d.%d.%d", a.Shard, a.Realm, a.Num)
}

// ParseAccountID parses the canonical shard.realm.num form
func ParseAccountID(s string) (AccountID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return AccountID{}, fmt.Errorf(
			"%w: %q",
			ErrInvalidAccountID,
			s,
		)
	}
	var vals [3]uint64
	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return AccountID{}, fmt.Errorf(
				"%w: %q: %w",
				ErrInvalidAccountID,
				s,
				err,
			)
		}
		vals[i] = val
	}
	return AccountID{Shard: vals[0], Realm: vals[1], Num: vals[2]}, nil
}

// TransactionID identifies a transaction on the network. The payer account
// and the valid-start timestamp together are unique among accepted
// transactions, and the valid-start timestamp doubles as the earliest
// moment the transaction may execute.
type TransactionID struct {
	AccountID  AccountID
	ValidStart time.Time
}

// String renders the canonical account@seconds.nanos form, e.g.
// 0.0.1234@1700000000.000000001
func (t TransactionID) String() string {
	return fmt.Sprintf(
		"%s@%d.%09d",
		t.AccountID.String(),
		t.ValidStart.Unix(),
		t.ValidStart.Nanosecond(),
	)
}

// ParseTransactionID parses the canonical account@seconds.nanos form
func ParseTransactionID(s string) (TransactionID, error) {
	accountPart, timePart, found := strings.Cut(s, "@")
	if !found {
		return TransactionID{}, fmt.Errorf(
			"%w: missing timestamp separator: %q",
			ErrInvalidTransactionID,
			s,
		)
	}
	accountID, err := ParseAccountID(accountPart)
	if err != nil {
		return TransactionID{}, fmt.Errorf(
			"%w: %q: %w",
			ErrInvalidTransactionID,
			s,
			err,
		)
	}
	secondsPart, nanosPart, found := strings.Cut(timePart, ".")
	if !found {
		return TransactionID{}, fmt.Errorf(
			"%w: missing nanos separator: %q",
			ErrInvalidTransactionID,
			s,
		)
	}
	seconds, err := strconv.ParseInt(secondsPart, 10, 64)
	if err != nil {
		return TransactionID{}, fmt.Errorf(
			"%w: %q: %w",
			ErrInvalidTransactionID,
			s,
			err,
		)
	}
	nanos, err := strconv.ParseInt(nanosPart, 10, 64)
	if err != nil || nanos < 0 || nanos > 999_999_999 {
		return TransactionID{}, fmt.Errorf(
			"%w: bad nanos in %q",
			ErrInvalidTransactionID,
			s,
		)
	}
	return TransactionID{
		AccountID:  accountID,
		ValidStart: time.Unix(seconds, nanos).UTC(),
	}, nil
}
