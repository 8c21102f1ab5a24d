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

package lifecycle

import (
	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
	"github.com/yordanove/hedera-transaction-tool-sub000/signing"
)

// Page is the pagination and sorting portion of a listing request
type Page struct {
	SortField      string
	SortDescending bool
	Limit          int
	Offset         int
}

// StatusFilter is a caller-supplied status restriction on the history
// listing. Rule is one of eq, in, neq, nin.
type StatusFilter struct {
	Rule   string
	Values []models.TransactionStatus
}

// GetTransactions returns one page of the transactions related to the
// user as creator, observer, or signer
func (s *Service) GetTransactions(
	user *models.User,
	page Page,
) ([]models.Transaction, int64, error) {
	return s.db.ListTransactions(database.ListParams{
		UserRelated:    user.ID,
		Network:        s.network,
		SortField:      page.SortField,
		SortDescending: page.SortDescending,
		Limit:          page.Limit,
		Offset:         page.Offset,
	}, nil)
}

// HistoryStatuses sanitizes a caller-supplied status filter against
// the terminal allow-list. Whatever the caller requests, the result
// can only ever name terminal statuses, so the history listing can
// never expose a non-terminal transaction.
func HistoryStatuses(
	filter *StatusFilter,
) []models.TransactionStatus {
	if filter == nil {
		return models.TerminalStatuses
	}
	terminal := func(status models.TransactionStatus) bool {
		return status.IsTerminal()
	}
	switch filter.Rule {
	case "eq":
		// A non-terminal value falls back to the full terminal set
		if len(filter.Values) == 1 && terminal(filter.Values[0]) {
			return []models.TransactionStatus{filter.Values[0]}
		}
		return models.TerminalStatuses
	case "in":
		// Non-terminal values are silently dropped, possibly
		// yielding an always-false empty filter
		out := []models.TransactionStatus{}
		for _, status := range filter.Values {
			if terminal(status) {
				out = append(out, status)
			}
		}
		return out
	case "neq", "nin":
		// The caller's exclusions union with the forbidden
		// non-terminal set
		excluded := make(map[models.TransactionStatus]struct{})
		for _, status := range filter.Values {
			excluded[status] = struct{}{}
		}
		out := []models.TransactionStatus{}
		for _, status := range models.TerminalStatuses {
			if _, ok := excluded[status]; !ok {
				out = append(out, status)
			}
		}
		return out
	default:
		return models.TerminalStatuses
	}
}

// GetHistoryTransactions returns one page of terminal transactions.
// The status filter is sanitized so no filter can surface a
// non-terminal transaction.
func (s *Service) GetHistoryTransactions(
	page Page,
	filter *StatusFilter,
) ([]models.Transaction, int64, error) {
	return s.db.ListTransactions(database.ListParams{
		Statuses:       HistoryStatuses(filter),
		Network:        s.network,
		SortField:      page.SortField,
		SortDescending: page.SortDescending,
		Limit:          page.Limit,
		Offset:         page.Offset,
	}, nil)
}

// ToSignItem pairs a transaction with the user's keys it still needs
type ToSignItem struct {
	Transaction models.Transaction
	KeysToSign  []uint
}

// GetTransactionsToSign returns one page of transactions waiting for
// at least one of the user's keys. A user owning no keys gets an empty
// page without a query. A transaction whose key resolution fails is
// omitted from the page rather than failing it.
func (s *Service) GetTransactionsToSign(
	user *models.User,
	page Page,
) ([]ToSignItem, int64, error) {
	if len(user.Keys) == 0 {
		return nil, 0, nil
	}
	candidates, _, err := s.db.ListTransactions(database.ListParams{
		Statuses: []models.TransactionStatus{
			models.StatusWaitingForSignatures,
		},
		Network:        s.network,
		SortField:      page.SortField,
		SortDescending: page.SortDescending,
	}, nil)
	if err != nil {
		return nil, 0, err
	}
	var items []ToSignItem
	for _, tx := range candidates {
		decoded, err := ledger.TransactionFromBytes(
			tx.TransactionBytes,
		)
		if err != nil {
			s.logger.Debug(
				"skipping unresolvable transaction",
				"transaction_id", tx.TransactionID,
				"err", err,
			)
			continue
		}
		keys := signing.KeysRequiredToSign(
			decoded.Body.SigningKey,
			decoded.SignedBy(),
			user.Keys,
			false,
		)
		if len(keys) == 0 {
			continue
		}
		items = append(items, ToSignItem{
			Transaction: tx,
			KeysToSign:  keys,
		})
	}
	total := int64(len(items))
	items = slicePage(items, page)
	return items, total, nil
}

// GetTransactionsToApprove returns one page of waiting transactions
// where the user holds an approver slot and has not yet approved
func (s *Service) GetTransactionsToApprove(
	user *models.User,
	page Page,
) ([]models.Transaction, int64, error) {
	ids, err := s.db.GetUserApproverTransactionIDs(user.ID, nil)
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return nil, 0, nil
	}
	return s.db.ListTransactions(database.ListParams{
		IDs: ids,
		Statuses: []models.TransactionStatus{
			models.StatusWaitingForSignatures,
			models.StatusWaitingForExecution,
		},
		Network:        s.network,
		SortField:      page.SortField,
		SortDescending: page.SortDescending,
		Limit:          page.Limit,
		Offset:         page.Offset,
	}, nil)
}

func slicePage[T any](items []T, page Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return nil
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}
