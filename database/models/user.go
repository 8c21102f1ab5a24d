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

// User represents an organization user account
type User struct {
	Keys      []UserKey `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Email     string    `gorm:"uniqueIndex;size:256"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	ID        uint           `gorm:"primaryKey"`
	Admin     bool
}

func (User) TableName() string {
	return "user"
}

// UserKey is a public key owned by a user at a given derivation index.
// A revoked key is soft-deleted so historical signature attribution
// survives.
type UserKey struct {
	PublicKey    []byte `gorm:"index;size:32"`
	MnemonicHash string `gorm:"size:128"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
	ID           uint           `gorm:"primaryKey"`
	UserID       uint           `gorm:"index"`
	Index        int64
}

func (UserKey) TableName() string {
	return "user_key"
}
