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

// Package txtool wires the multi-party transaction signing coordinator
// together: storage, lifecycle, signature merging, groups, approvals,
// reminders, and the REST API.
package txtool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yordanove/hedera-transaction-tool-sub000/api"
	"github.com/yordanove/hedera-transaction-tool-sub000/approvals"
	"github.com/yordanove/hedera-transaction-tool-sub000/database"
	"github.com/yordanove/hedera-transaction-tool-sub000/event"
	"github.com/yordanove/hedera-transaction-tool-sub000/execution"
	"github.com/yordanove/hedera-transaction-tool-sub000/groups"
	"github.com/yordanove/hedera-transaction-tool-sub000/ledger"
	"github.com/yordanove/hedera-transaction-tool-sub000/lifecycle"
	"github.com/yordanove/hedera-transaction-tool-sub000/scheduler"
	"github.com/yordanove/hedera-transaction-tool-sub000/signing"
)

type Coordinator struct {
	config       Config
	eventBus     *event.EventBus
	db           *database.Database
	txs          *lifecycle.Service
	merger       *signing.Merger
	groups       *groups.Service
	approvals    *approvals.Service
	sched        *scheduler.TimerScheduler
	exec         *execution.Submitter
	api          *api.Api
	done         chan struct{}
	shutdownOnce sync.Once
}

func New(cfg Config) (*Coordinator, error) {
	// Fail early on an unknown network name
	client, err := ledger.NewClient(cfg.network)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	client.Close()
	c := &Coordinator{
		config: cfg,
		eventBus: event.NewEventBus(
			cfg.promRegistry,
			cfg.logger,
		),
		done: make(chan struct{}),
	}
	return c, nil
}

// Run starts the coordinator and blocks until Stop is called or the
// context is cancelled
func (c *Coordinator) Run(ctx context.Context) error {
	db, err := database.New(database.Config{
		Logger:      c.config.logger,
		DataDir:     c.config.dataDir,
		PostgresDsn: c.config.postgresDsn,
		Tracing:     c.config.tracing,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if db == nil {
		return errors.New("empty database returned")
	}
	c.db = db

	c.exec = execution.NewSubmitter(
		c.db,
		nil,
		c.config.logger,
	)
	c.sched = scheduler.NewTimerScheduler(
		c.fireReminder,
		c.config.logger,
	)
	c.txs = lifecycle.NewService(lifecycle.ServiceConfig{
		Database:     c.db,
		EventBus:     c.eventBus,
		Executor:     c.exec,
		Scheduler:    c.sched,
		Logger:       c.config.logger,
		PromRegistry: c.config.promRegistry,
		Network:      c.config.network,
	})
	c.merger = signing.NewMerger(signing.MergerConfig{
		Database:    c.db,
		EventBus:    c.eventBus,
		Access:      c.txs,
		Reevaluator: c.txs,
		Logger:      c.config.logger,
	})
	c.approvals = approvals.NewService(
		c.db,
		c.eventBus,
		c.config.logger,
	)
	c.groups = groups.NewService(groups.ServiceConfig{
		Database:  c.db,
		EventBus:  c.eventBus,
		Lifecycle: c.txs,
		Logger:    c.config.logger,
	})
	c.api = api.New(
		api.Config{
			ListenAddress: c.config.listenAddress,
		},
		c.db,
		c.txs,
		c.merger,
		c.groups,
		c.approvals,
		c.config.logger,
	)
	if err := c.api.Start(ctx); err != nil {
		return err
	}

	// Reminder timers live in memory; rebuild them from storage so a
	// restart loses nothing
	if err := c.restoreReminders(); err != nil {
		c.config.logger.Error(
			"failed to restore reminders",
			"error", err,
		)
	}

	go c.expiryLoop(ctx)

	select {
	case <-ctx.Done():
	case <-c.done:
	}
	return c.shutdown()
}

// Stop shuts the coordinator down
func (c *Coordinator) Stop() {
	c.shutdownOnce.Do(func() {
		close(c.done)
	})
}

// expiryLoop periodically sweeps waiting transactions past their
// cutoff or valid-start window
func (c *Coordinator) expiryLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.expiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case now := <-ticker.C:
			if err := c.txs.ExpireTransactions(now); err != nil {
				c.config.logger.Error(
					"expiry sweep failed",
					"error", err,
				)
			}
		}
	}
}

// restoreReminders re-schedules the pending sign reminders recorded on
// waiting transactions
func (c *Coordinator) restoreReminders() error {
	pending, err := c.db.GetPendingReminders(time.Now(), nil)
	if err != nil {
		return err
	}
	for _, row := range pending {
		c.sched.AddReminder(
			scheduler.ReminderKey(row.TransactionID),
			*row.ReminderAt,
		)
	}
	if len(pending) > 0 {
		c.config.logger.Info(
			"restored pending reminders",
			"count", len(pending),
		)
	}
	return nil
}

// fireReminder is the scheduler callback: a due reminder becomes an
// event for the messaging layer
func (c *Coordinator) fireReminder(key string) {
	c.eventBus.PublishAsync(
		event.TransactionReminderEventType,
		event.NewEvent(
			event.TransactionReminderEventType,
			event.TransactionReminderEvent{Key: key},
		),
	)
}

func (c *Coordinator) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		c.config.shutdownTimeout,
	)
	defer cancel()
	var ret error
	if c.api != nil {
		if err := c.api.Stop(shutdownCtx); err != nil {
			ret = errors.Join(ret, err)
		}
	}
	if c.sched != nil {
		c.sched.Stop()
	}
	if c.eventBus != nil {
		c.eventBus.Stop()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			ret = errors.Join(ret, err)
		}
	}
	return ret
}
