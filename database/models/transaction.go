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

package models

import (
	"time"

	"gorm.io/gorm"
)

// TransactionStatus is the lifecycle state of a transaction
type TransactionStatus string

const (
	StatusNew                  TransactionStatus = "NEW"
	StatusWaitingForSignatures TransactionStatus = "WAITING FOR SIGNATURES"
	StatusWaitingForExecution  TransactionStatus = "WAITING FOR EXECUTION"
	StatusExecuted             TransactionStatus = "EXECUTED"
	StatusFailed               TransactionStatus = "FAILED"
	StatusExpired              TransactionStatus = "EXPIRED"
	StatusCanceled             TransactionStatus = "CANCELED"
	StatusArchived             TransactionStatus = "ARCHIVED"
	StatusRejected             TransactionStatus = "REJECTED"
)

// TerminalStatuses are the historical states: transactions in one of
// these never transition again and are visible to any authenticated
// user
var TerminalStatuses = []TransactionStatus{
	StatusExecuted,
	StatusFailed,
	StatusExpired,
	StatusCanceled,
	StatusArchived,
	StatusRejected,
}

// IsTerminal reports whether the status is a historical one
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusExecuted, StatusFailed, StatusExpired,
		StatusCanceled, StatusArchived, StatusRejected:
		return true
	default:
		return false
	}
}

// InactiveStatuses are the states that release a network transaction
// id for reuse: a new transaction may share an id with one of these
var InactiveStatuses = []TransactionStatus{
	StatusCanceled,
	StatusRejected,
	StatusArchived,
}

// Transaction is the central entity: a partially built network
// transaction accumulating signatures toward execution
type Transaction struct {
	CreatorKey       *UserKey               `gorm:"foreignKey:CreatorKeyID;references:ID"`
	Signers          []TransactionSigner    `gorm:"foreignKey:TransactionID;references:ID;constraint:OnDelete:CASCADE"`
	Approvers        []TransactionApprover  `gorm:"foreignKey:TransactionID;references:ID;constraint:OnDelete:CASCADE"`
	Observers        []TransactionObserver  `gorm:"foreignKey:TransactionID;references:ID;constraint:OnDelete:CASCADE"`
	Comments         []TransactionComment   `gorm:"foreignKey:TransactionID;references:ID;constraint:OnDelete:CASCADE"`
	GroupItem        *TransactionGroupItem  `gorm:"foreignKey:TransactionID;references:ID;constraint:OnDelete:CASCADE"`
	TransactionID    string                 `gorm:"index;size:128"`
	Name             string                 `gorm:"size:256"`
	Description      string
	Network          string `gorm:"index;size:32"`
	Status           TransactionStatus `gorm:"index;size:32"`
	StatusCode       string            `gorm:"size:64"`
	Type             uint
	UnsignedBytes    []byte
	TransactionBytes []byte
	TransactionHash  []byte `gorm:"index;size:32"`
	// NewKeys holds serialized public keys introduced by this
	// transaction (key rotations), for bookkeeping only
	NewKeys []byte
	// Signature is the creator's own signature over the unsigned
	// bytes, binding authorship to the creator key
	Signature  []byte
	ValidStart time.Time `gorm:"index"`
	// ReminderAt is when a sign reminder should fire, nil when the
	// creator asked for none
	ReminderAt *time.Time
	CutoffAt   *time.Time
	ExecutedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
	ID         uint           `gorm:"primaryKey"`
	CreatorKeyID uint         `gorm:"index"`
	IsManual     bool
}

func (Transaction) TableName() string {
	return "transaction"
}

// TransactionSigner records one user key having signed a transaction.
// Rows are append-only; revoking a key soft-deletes the row while the
// signature itself remains embedded in the transaction bytes.
type TransactionSigner struct {
	UserKey       *UserKey `gorm:"foreignKey:UserKeyID;references:ID"`
	CreatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
	ID            uint           `gorm:"primaryKey"`
	TransactionID uint           `gorm:"index"`
	UserKeyID     uint           `gorm:"index"`
	UserID        uint           `gorm:"index"`
}

func (TransactionSigner) TableName() string {
	return "transaction_signer"
}

// TransactionApprover is one node of the recursive approval tree for a
// transaction. A row with a ListID belongs to a nested approval group;
// a row with a Threshold and no UserID is itself a group node.
type TransactionApprover struct {
	User          *User `gorm:"foreignKey:UserID;references:ID"`
	Signature     []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
	ID            uint           `gorm:"primaryKey"`
	TransactionID *uint          `gorm:"index"`
	// ListID points at the parent approver group node, nil for roots
	ListID    *uint `gorm:"index"`
	UserID    *uint `gorm:"index"`
	UserKeyID *uint
	Threshold *uint32
	Approved  *bool
}

func (TransactionApprover) TableName() string {
	return "transaction_approver"
}

// TransactionObserver registers a user for status notifications on a
// transaction without signing or approval rights
type TransactionObserver struct {
	User          *User `gorm:"foreignKey:UserID;references:ID"`
	Role          string `gorm:"size:32"`
	CreatedAt     time.Time
	ID            uint `gorm:"primaryKey"`
	TransactionID uint `gorm:"index"`
	UserID        uint `gorm:"index"`
}

func (TransactionObserver) TableName() string {
	return "transaction_observer"
}

// TransactionComment is a free-text note attached to a transaction
type TransactionComment struct {
	User          *User `gorm:"foreignKey:UserID;references:ID"`
	Message       string
	CreatedAt     time.Time
	ID            uint `gorm:"primaryKey"`
	TransactionID uint `gorm:"index"`
	UserID        uint `gorm:"index"`
}

func (TransactionComment) TableName() string {
	return "transaction_comment"
}
