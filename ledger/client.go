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

package ledger

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownNetwork = errors.New("unknown network name")
	ErrClientClosed   = errors.New("ledger client is closed")
)

// networkNodes maps known network names to their default consensus
// node account ids
var networkNodes = map[string][]AccountID{
	"mainnet": {
		{Num: 3}, {Num: 4}, {Num: 5}, {Num: 6}, {Num: 7},
	},
	"testnet": {
		{Num: 3}, {Num: 4}, {Num: 5}, {Num: 6},
	},
	"previewnet": {
		{Num: 3}, {Num: 4},
	},
	"local-node": {
		{Num: 3},
	},
}

// Client is a handle on a named network, acquired once per creation
// batch and released with Close on every exit path
type Client struct {
	network string
	nodes   []AccountID
	mu      sync.Mutex
	closed  bool
}

// NewClient returns a client for the named network
func NewClient(network string) (*Client, error) {
	nodes, ok := networkNodes[network]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
	return &Client{
		network: network,
		nodes:   nodes,
	}, nil
}

// Network returns the network name this client was opened against
func (c *Client) Network() string {
	return c.network
}

// Nodes returns the consensus node account ids for this network
func (c *Client) Nodes() []AccountID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AccountID, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Close releases the client. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close has been called
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
