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

	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/groups"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
	"github.com/yordanove/hedera-transaction-tool-sub000/lifecycle"
)

// handleCreateObserver handles
// POST /api/v1/transactions/{id}/observers; only the creator may
// register observers
func (a *Api) handleCreateObserver(
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
	var req CreateObserverRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == 0 {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"missing user_id",
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
	observer := &models.TransactionObserver{
		TransactionID: id,
		UserID:        req.UserID,
		Role:          req.Role,
	}
	if err := a.db.CreateObserver(observer, nil); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ObserverResponse{
		ID:     observer.ID,
		UserID: observer.UserID,
		Role:   observer.Role,
	})
}

// handleGetComments handles GET /api/v1/transactions/{id}/comments
func (a *Api) handleGetComments(
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
	if _, _, err := a.txs.GetTransactionWithVerifiedAccess(
		id,
		user,
	); err != nil {
		a.writeServiceError(w, err)
		return
	}
	comments, err := a.db.GetComments(id, nil)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	out := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, CommentResponse{
			ID:        comment.ID,
			UserID:    comment.UserID,
			Message:   comment.Message,
			CreatedAt: comment.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateComment handles POST /api/v1/transactions/{id}/comments
func (a *Api) handleCreateComment(
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
	var req CreateCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"missing message",
		)
		return
	}
	if _, _, err := a.txs.GetTransactionWithVerifiedAccess(
		id,
		user,
	); err != nil {
		a.writeServiceError(w, err)
		return
	}
	comment := &models.TransactionComment{
		TransactionID: id,
		UserID:        user.ID,
		Message:       req.Message,
	}
	if err := a.db.CreateComment(comment, nil); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CommentResponse{
		ID:        comment.ID,
		UserID:    comment.UserID,
		Message:   comment.Message,
		CreatedAt: comment.CreatedAt,
	})
}

// handleCreateGroup handles POST /api/v1/transaction-groups
func (a *Api) handleCreateGroup(
	w http.ResponseWriter,
	r *http.Request,
) {
	user := a.authUser(w, r)
	if user == nil {
		return
	}
	var req CreateGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dto := groups.CreateGroupDto{
		Description: req.Description,
		Atomic:      req.Atomic,
		Sequential:  req.Sequential,
	}
	for _, item := range req.Items {
		dto.Items = append(dto.Items, toCreateDto(item))
	}
	group, err := a.groups.CreateTransactionGroup(
		r.Context(),
		dto,
		user,
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, GroupResponse{
		ID:          group.ID,
		Description: group.Description,
		Atomic:      group.Atomic,
		Sequential:  group.Sequential,
	})
}

// handleGetGroup handles GET /api/v1/transaction-groups/{id}
func (a *Api) handleGetGroup(
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
	group, err := a.groups.GetTransactionGroup(id, user)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	resp := GroupResponse{
		ID:          group.Group.ID,
		Description: group.Group.Description,
		Atomic:      group.Group.Atomic,
		Sequential:  group.Group.Sequential,
	}
	for _, item := range group.Items {
		out := GroupItemResponse{
			Seq:           item.Row.Seq,
			TransactionID: item.Row.TransactionID,
			NetworkTxID:   item.Row.NetworkTxID,
			Name:          item.Row.Name,
			Description:   item.Row.Description,
			Network:       item.Row.Network,
			Status:        item.Row.Status,
			Type: ledger.TransactionType(
				item.Row.Type,
			).String(),
			ValidStart:   item.Row.ValidStart,
			CreatorEmail: item.Row.CreatorEmail,
			IsManual:     item.Row.IsManual,
			Approvers:    toApproverResponses(item.Approvers),
		}
		for _, signer := range item.Signers {
			out.Signers = append(out.Signers, SignerResponse{
				ID:        signer.ID,
				UserID:    signer.UserID,
				UserKeyID: signer.UserKeyID,
				CreatedAt: signer.CreatedAt,
			})
		}
		for _, observer := range item.Observers {
			out.Observers = append(out.Observers, ObserverResponse{
				ID:     observer.ID,
				UserID: observer.UserID,
				Role:   observer.Role,
			})
		}
		resp.Items = append(resp.Items, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRemoveGroup handles DELETE /api/v1/transaction-groups/{id}
func (a *Api) handleRemoveGroup(
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
	if err := a.groups.RemoveTransactionGroup(id, user); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
