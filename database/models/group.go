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
)

// TransactionGroup bundles related transactions created as one unit.
// Atomic groups execute all-or-nothing; sequential groups execute in
// item order.
type TransactionGroup struct {
	Items       []TransactionGroupItem `gorm:"foreignKey:GroupID;references:ID;constraint:OnDelete:CASCADE"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ID          uint `gorm:"primaryKey"`
	Atomic      bool
	Sequential  bool
}

func (TransactionGroup) TableName() string {
	return "transaction_group"
}

// TransactionGroupItem records one transaction's membership in a group
// at a sequence position
type TransactionGroupItem struct {
	CreatedAt     time.Time
	ID            uint `gorm:"primaryKey"`
	GroupID       uint `gorm:"index"`
	TransactionID uint `gorm:"uniqueIndex"`
	Seq           int
}

func (TransactionGroupItem) TableName() string {
	return "transaction_group_item"
}
