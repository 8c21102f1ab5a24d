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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/yordanove/hedera-transaction-tool-sub000/approvals"
	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
	"github.com/yordanove/hedera-transaction-tool-sub000/groups"
	"github.com/yordanove/hedera-transaction-tool-sub000/lifecycle"
	"github.com/yordanove/hedera-transaction-tool-sub000/signing"
)

// UserIDHeader names the authenticated user, resolved upstream by the
// auth proxy
const UserIDHeader = "X-User-Id"

// writeJSON writes a JSON response with the given status code
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes a uniform error response
func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// writeServiceError maps service sentinel errors onto HTTP statuses
func (a *Api) writeServiceError(
	w http.ResponseWriter,
	err error,
) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound),
		errors.Is(err, signing.ErrTransactionNotFound),
		errors.Is(err, approvals.ErrTransactionNotFound),
		errors.Is(err, groups.ErrGroupNotFound):
		writeError(
			w,
			http.StatusNotFound,
			"Not Found",
			err.Error(),
		)
	case errors.Is(err, lifecycle.ErrUnauthorized),
		errors.Is(err, groups.ErrGroupUnauthorized):
		writeError(
			w,
			http.StatusForbidden,
			"Forbidden",
			err.Error(),
		)
	case errors.Is(err, lifecycle.ErrInvalidState),
		errors.Is(err, lifecycle.ErrExpired),
		errors.Is(err, lifecycle.ErrOversize),
		errors.Is(err, lifecycle.ErrDuplicate),
		errors.Is(err, lifecycle.ErrInvalidSignature),
		errors.Is(err, signing.ErrInvalidState),
		errors.Is(err, signing.ErrExpired),
		errors.Is(err, signing.ErrInvalidSignature):
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
	default:
		a.logger.Error(
			"request failed",
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"request failed",
		)
	}
}

// authUser resolves the caller from the user id header. A missing or
// unknown id writes the response and returns nil.
func (a *Api) authUser(
	w http.ResponseWriter,
	r *http.Request,
) *models.User {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		writeError(
			w,
			http.StatusUnauthorized,
			"Unauthorized",
			"missing "+UserIDHeader+" header",
		)
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(
			w,
			http.StatusUnauthorized,
			"Unauthorized",
			"invalid "+UserIDHeader+" header",
		)
		return nil
	}
	user, err := a.db.GetUser(uint(id), nil)
	if err != nil {
		a.logger.Error(
			"failed to resolve user",
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to resolve user",
		)
		return nil
	}
	if user == nil {
		writeError(
			w,
			http.StatusUnauthorized,
			"Unauthorized",
			"unknown user",
		)
		return nil
	}
	return user
}

// pathID parses the {id} path segment. Zero means the response was
// already written.
func pathID(w http.ResponseWriter, r *http.Request) uint {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid id",
		)
		return 0
	}
	return uint(id)
}

// decodeBody decodes a JSON request body, writing the response on
// failure
func decodeBody(
	w http.ResponseWriter,
	r *http.Request,
	v any,
) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid request body",
		)
		return false
	}
	return true
}

// handleHealth handles GET /health
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Healthy: true,
	})
}
