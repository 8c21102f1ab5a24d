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

package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
)

// GetUser returns a user with their current (non-revoked) keys, or nil
// when absent
func (d *Database) GetUser(
	id uint,
	txn *gorm.DB,
) (*models.User, error) {
	ret := &models.User{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.
		Preload("Keys").
		First(ret, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetUserByEmail returns a user by email, or nil when absent
func (d *Database) GetUserByEmail(
	email string,
	txn *gorm.DB,
) (*models.User, error) {
	ret := &models.User{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.
		Preload("Keys").
		First(ret, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// SaveUser persists a user and any attached keys
func (d *Database) SaveUser(
	user *models.User,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	return txn.Save(user).Error
}

// GetUserKey returns a single key record, or nil when absent
func (d *Database) GetUserKey(
	id uint,
	txn *gorm.DB,
) (*models.UserKey, error) {
	ret := &models.UserKey{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.First(ret, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetUserKeys returns the user's current keys
func (d *Database) GetUserKeys(
	userID uint,
	txn *gorm.DB,
) ([]models.UserKey, error) {
	if txn == nil {
		txn = d.DB()
	}
	var ret []models.UserKey
	result := txn.Find(&ret, "user_id = ?", userID)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SaveUserKey persists a key record
func (d *Database) SaveUserKey(
	key *models.UserKey,
	txn *gorm.DB,
) error {
	if txn == nil {
		txn = d.DB()
	}
	return txn.Save(key).Error
}
