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
	"time"

	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
)

// ErrorResponse is the error body shape for all endpoints
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type HealthResponse struct {
	Healthy bool `json:"healthy"`
}

// CreateTransactionRequest admits one transaction. Byte fields are
// base64 in transit.
type CreateTransactionRequest struct {
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	TransactionBytes    []byte     `json:"transaction_bytes"`
	Signature           []byte     `json:"signature"`
	CreatorKeyID        uint       `json:"creator_key_id"`
	CutoffAt            *time.Time `json:"cutoff_at,omitempty"`
	ReminderLeadSeconds *int64     `json:"reminder_lead_seconds,omitempty"`
	IsManual            bool       `json:"is_manual"`
}

// TransactionResponse is the transaction shape returned by every
// listing and detail endpoint
type TransactionResponse struct {
	ID               uint                     `json:"id"`
	TransactionID    string                   `json:"transaction_id"`
	Name             string                   `json:"name"`
	Description      string                   `json:"description"`
	Network          string                   `json:"network"`
	Status           models.TransactionStatus `json:"status"`
	StatusCode       string                   `json:"status_code,omitempty"`
	Type             string                   `json:"type"`
	TransactionBytes []byte                   `json:"transaction_bytes,omitempty"`
	TransactionHash  []byte                   `json:"transaction_hash,omitempty"`
	ValidStart       time.Time                `json:"valid_start"`
	CutoffAt         *time.Time               `json:"cutoff_at,omitempty"`
	ExecutedAt       *time.Time               `json:"executed_at,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	CreatorKeyID     uint                     `json:"creator_key_id"`
	IsManual         bool                     `json:"is_manual"`
}

func toTransactionResponse(tx *models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:               tx.ID,
		TransactionID:    tx.TransactionID,
		Name:             tx.Name,
		Description:      tx.Description,
		Network:          tx.Network,
		Status:           tx.Status,
		StatusCode:       tx.StatusCode,
		Type:             ledger.TransactionType(tx.Type).String(),
		TransactionBytes: tx.TransactionBytes,
		TransactionHash:  tx.TransactionHash,
		ValidStart:       tx.ValidStart,
		CutoffAt:         tx.CutoffAt,
		ExecutedAt:       tx.ExecutedAt,
		CreatedAt:        tx.CreatedAt,
		CreatorKeyID:     tx.CreatorKeyID,
		IsManual:         tx.IsManual,
	}
}

// TransactionDetailResponse adds the relationships a detail view shows
type TransactionDetailResponse struct {
	Transaction TransactionResponse  `json:"transaction"`
	Signers     []SignerResponse     `json:"signers"`
	Observers   []ObserverResponse   `json:"observers"`
	Approvers   []ApproverResponse   `json:"approvers"`
}

type SignerResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	UserKeyID uint      `json:"user_key_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ObserverResponse struct {
	ID     uint   `json:"id"`
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
}

// ApproverResponse is one flat approver tree row; ListID points at the
// parent row
type ApproverResponse struct {
	ID        uint    `json:"id"`
	ListID    *uint   `json:"list_id,omitempty"`
	UserID    *uint   `json:"user_id,omitempty"`
	UserKeyID *uint   `json:"user_key_id,omitempty"`
	Threshold *uint32 `json:"threshold,omitempty"`
	Approved  *bool   `json:"approved,omitempty"`
	HasSigned bool    `json:"has_signed"`
}

func toApproverResponses(
	rows []database.ApproverRow,
) []ApproverResponse {
	out := make([]ApproverResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, ApproverResponse{
			ID:        row.ID,
			ListID:    row.ListID,
			UserID:    row.UserID,
			UserKeyID: row.UserKeyID,
			Threshold: row.Threshold,
			Approved:  row.Approved,
			HasSigned: len(row.Signature) > 0,
		})
	}
	return out
}

// ToSignResponse pairs a transaction with the caller's keys it still
// needs
type ToSignResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	KeysToSign  []uint              `json:"keys_to_sign"`
}

// ImportSignaturesRequest carries signature maps for one or more
// transactions. The map is node account id to public key to signature.
type ImportSignaturesRequest struct {
	Entries []ImportSignaturesEntry `json:"entries"`
}

type ImportSignaturesEntry struct {
	TransactionID uint                `json:"transaction_id"`
	SignatureMap  ledger.SignatureMap `json:"signature_map"`
}

// ImportSignaturesResponse reports a per-entry outcome; a failed entry
// never fails its batch
type ImportSignaturesResponse struct {
	Results []ImportResultResponse `json:"results"`
}

type ImportResultResponse struct {
	TransactionID uint   `json:"transaction_id"`
	Error         string `json:"error,omitempty"`
}

// ApproverRequest is one node of a requested approval tree
type ApproverRequest struct {
	UserID    *uint             `json:"user_id,omitempty"`
	UserKeyID *uint             `json:"user_key_id,omitempty"`
	Threshold *uint32           `json:"threshold,omitempty"`
	Approvers []ApproverRequest `json:"approvers,omitempty"`
}

type CreateApproversRequest struct {
	Approvers []ApproverRequest `json:"approvers"`
}

// ApproveRequest records an approval decision; Signature is the
// approver's signature over the transaction body bytes
type ApproveRequest struct {
	Signature []byte `json:"signature"`
	Approved  bool   `json:"approved"`
}

type CreateObserverRequest struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

type CreateCommentRequest struct {
	Message string `json:"message"`
}

type CommentResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateGroupRequest admits a batch of transactions bound as one group
type CreateGroupRequest struct {
	Description string                     `json:"description"`
	Atomic      bool                       `json:"atomic"`
	Sequential  bool                       `json:"sequential"`
	Items       []CreateTransactionRequest `json:"items"`
}

type GroupResponse struct {
	ID          uint                `json:"id"`
	Description string              `json:"description"`
	Atomic      bool                `json:"atomic"`
	Sequential  bool                `json:"sequential"`
	Items       []GroupItemResponse `json:"items"`
}

// GroupItemResponse is one group member with its transaction summary
// and creator identity
type GroupItemResponse struct {
	Seq           int                      `json:"seq"`
	TransactionID uint                     `json:"transaction_id"`
	NetworkTxID   string                   `json:"network_transaction_id"`
	Name          string                   `json:"name"`
	Description   string                   `json:"description"`
	Network       string                   `json:"network"`
	Status        models.TransactionStatus `json:"status"`
	Type          string                   `json:"type"`
	ValidStart    time.Time                `json:"valid_start"`
	CreatorEmail  string                   `json:"creator_email"`
	IsManual      bool                     `json:"is_manual"`
	Signers       []SignerResponse         `json:"signers"`
	Observers     []ObserverResponse       `json:"observers"`
	Approvers     []ApproverResponse       `json:"approvers"`
}
