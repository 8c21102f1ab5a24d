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
	"net/http"
	"strings"
	"time"

	"github.com/yordanove/hedera-transaction-tool-sub000/approvals"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/lifecycle"
	"github.com/yordanove/hedera-transaction-tool-sub000/signing"
)

func toCreateDto(
	req CreateTransactionRequest,
) lifecycle.CreateTransactionDto {
	dto := lifecycle.CreateTransactionDto{
		Name:             req.Name,
		Description:      req.Description,
		TransactionBytes: req.TransactionBytes,
		Signature:        req.Signature,
		CreatorKeyID:     req.CreatorKeyID,
		CutoffAt:         req.CutoffAt,
		IsManual:         req.IsManual,
	}
	if req.ReminderLeadSeconds != nil {
		lead := time.Duration(*req.ReminderLeadSeconds) * time.Second
		dto.ReminderLead = &lead
	}
	return dto
}

// handleCreateTransaction handles POST /api/v1/transactions
func (a *Api) handleCreateTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	var req CreateTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := a.txs.CreateTransaction(
		r.Context(),
		toCreateDto(req),
		user,
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// handleListTransactions handles GET /api/v1/transactions and returns
// the transactions related to the caller
func (a *Api) handleListTransactions(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	rows, total, err := a.txs.GetTransactions(
		user,
		params.lifecyclePage(),
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	out := make([]TransactionResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toTransactionResponse(&rows[i]))
	}
	SetPaginationHeaders(w, int(total), params)
	writeJSON(w, http.StatusOK, out)
}

// historyFilter builds a status filter from the status and rule query
// parameters. An absent status parameter means no filter.
func historyFilter(r *http.Request) *lifecycle.StatusFilter {
	query := r.URL.Query()
	raw := query.Get("status")
	if raw == "" {
		return nil
	}
	rule := strings.ToLower(query.Get("rule"))
	if rule == "" {
		rule = "in"
	}
	var values []models.TransactionStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(
				values,
				models.TransactionStatus(strings.ToUpper(part)),
			)
		}
	}
	return &lifecycle.StatusFilter{
		Rule:   rule,
		Values: values,
	}
}

// handleHistoryTransactions handles GET /api/v1/transactions/history
func (a *Api) handleHistoryTransactions(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	rows, total, err := a.txs.GetHistoryTransactions(
		params.lifecyclePage(),
		historyFilter(r),
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	out := make([]TransactionResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toTransactionResponse(&rows[i]))
	}
	SetPaginationHeaders(w, int(total), params)
	writeJSON(w, http.StatusOK, out)
}

// handleTransactionsToSign handles GET /api/v1/transactions/sign
func (a *Api) handleTransactionsToSign(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	items, total, err := a.txs.GetTransactionsToSign(
		user,
		params.lifecyclePage(),
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	out := make([]ToSignResponse, 0, len(items))
	for i := range items {
		out = append(out, ToSignResponse{
			Transaction: toTransactionResponse(
				&items[i].Transaction,
			),
			KeysToSign: items[i].KeysToSign,
		})
	}
	SetPaginationHeaders(w, int(total), params)
	writeJSON(w, http.StatusOK, out)
}

// handleTransactionsToApprove handles GET /api/v1/transactions/approve
func (a *Api) handleTransactionsToApprove(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	rows, total, err := a.txs.GetTransactionsToApprove(
		user,
		params.lifecyclePage(),
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	out := make([]TransactionResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toTransactionResponse(&rows[i]))
	}
	SetPaginationHeaders(w, int(total), params)
	writeJSON(w, http.StatusOK, out)
}

// handleGetTransaction handles GET /api/v1/transactions/{id}
func (a *Api) handleGetTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	id := pathID(w, r)
	if id == 0 {
		return
	}
	tx, approverRows, err := a.txs.GetTransactionWithVerifiedAccess(
		id,
		user,
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	detail := TransactionDetailResponse{
		Transaction: toTransactionResponse(tx),
		Approvers:   toApproverResponses(approverRows),
	}
	for _, signer := range tx.Signers {
		detail.Signers = append(detail.Signers, SignerResponse{
			ID:        signer.ID,
			UserID:    signer.UserID,
			UserKeyID: signer.UserKeyID,
			CreatedAt: signer.CreatedAt,
		})
	}
	for _, observer := range tx.Observers {
		detail.Observers = append(detail.Observers, ObserverResponse{
			ID:     observer.ID,
			UserID: observer.UserID,
			Role:   observer.Role,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleImportSignatures handles
// POST /api/v1/transactions/signatures. Entries succeed or fail
// individually; the response always carries one result per entry.
func (a *Api) handleImportSignatures(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	var req ImportSignaturesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Entries) == 0 {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"no entries",
		)
		return
	}
	entries := make([]signing.ImportEntry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, signing.ImportEntry{
			TransactionID: entry.TransactionID,
			SignatureMap:  entry.SignatureMap,
		})
	}
	results := a.merger.ImportSignatures(r.Context(), entries, user)
	resp := ImportSignaturesResponse{
		Results: make([]ImportResultResponse, 0, len(results)),
	}
	for i, result := range results {
		item := ImportResultResponse{
			TransactionID: req.Entries[i].TransactionID,
		}
		if result.Err != nil {
			item.Error = result.Err.Error()
		}
		resp.Results = append(resp.Results, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancelTransaction handles
// POST /api/v1/transactions/{id}/cancel
func (a *Api) handleCancelTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	a.transitionHandler(w, r, a.txs.CancelTransaction)
}

// handleArchiveTransaction handles
// POST /api/v1/transactions/{id}/archive
func (a *Api) handleArchiveTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	a.transitionHandler(w, r, a.txs.ArchiveTransaction)
}

func (a *Api) transitionHandler(
	w http.ResponseWriter,
	r *http.Request,
	transition func(uint, *models.User) error,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	id := pathID(w, r)
	if id == 0 {
		return
	}
	if err := transition(id, user); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecuteTransaction handles
// POST /api/v1/transactions/{id}/execute
func (a *Api) handleExecuteTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	id := pathID(w, r)
	if id == 0 {
		return
	}
	if err := a.txs.ExecuteTransaction(
		r.Context(),
		id,
		user,
	); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveTransaction handles
// DELETE /api/v1/transactions/{id}; the hard query parameter removes
// the row outright instead of canceling it
func (a *Api) handleRemoveTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	id := pathID(w, r)
	if id == 0 {
		return
	}
	soft := r.URL.Query().Get("hard") != "true"
	if err := a.txs.RemoveTransaction(id, user, soft); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toApproverDtos(reqs []ApproverRequest) []approvals.ApproverDto {
	out := make([]approvals.ApproverDto, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, approvals.ApproverDto{
			UserID:    req.UserID,
			UserKeyID: req.UserKeyID,
			Threshold: req.Threshold,
			Approvers: toApproverDtos(req.Approvers),
		})
	}
	return out
}

// handleCreateApprovers handles
// POST /api/v1/transactions/{id}/approvers; only the creator may
// attach an approval tree
func (a *Api) handleCreateApprovers(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	id := pathID(w, r)
	if id == 0 {
		return
	}
	var req CreateApproversRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Approvers) == 0 {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"no approvers",
		)
		return
	}
	tx, _, err := a.txs.GetTransactionWithVerifiedAccess(id, user)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	owned, err := a.txs.VerifyCreator(tx, user)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if !owned {
		a.writeServiceError(w, lifecycle.ErrUnauthorized)
		return
	}
	if err := a.approvals.CreateApprovers(
		id,
		toApproverDtos(req.Approvers),
	); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleApproveTransaction handles
// POST /api/v1/transactions/{id}/approve
func (a *Api) handleApproveTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	id := pathID(w, r)
	if id == 0 {
		return
	}
	var req ApproveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.approvals.Approve(
		id,
		user,
		req.Signature,
		req.Approved,
	); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
