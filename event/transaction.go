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

package event

const (
	// TransactionStatusUpdateEventType fires when a transaction's
	// signatures or lifecycle status changed
	TransactionStatusUpdateEventType EventType = "transaction.status_update"
	// TransactionUpdateEventType fires on structural changes such as
	// removal, where downstream consumers re-fetch rather than patch
	TransactionUpdateEventType EventType = "transaction.update"
	// TransactionReminderEventType fires when a scheduled sign reminder
	// comes due
	TransactionReminderEventType EventType = "transaction.sign_reminder"
)

// UpdateEntry identifies one affected transaction in a notification
// batch, carrying its network transaction id and network for routing
type UpdateEntry struct {
	TransactionID string
	Network       string
	EntityID      uint
}

// TransactionStatusUpdateEvent is the payload for status-update
// notifications
type TransactionStatusUpdateEvent struct {
	Entries []UpdateEntry
}

// TransactionUpdateEvent is the payload for plain-update notifications
type TransactionUpdateEvent struct {
	Entries []UpdateEntry
}

// TransactionReminderEvent is the payload for sign-reminder
// notifications; Key is the scheduler's reminder key
type TransactionReminderEvent struct {
	Key string
}
