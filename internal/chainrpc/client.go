/*
Copyright 2024 IdleForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package chainrpc issues balance reads against a pool of interchangeable
// external ledger endpoints. Endpoints that fail are quarantined and the
// pool is rotated; the quarantine set is cleared in full on a fixed
// cooldown so a transiently bad endpoint is retried later rather than
// excluded forever. Successful reads are written through the cache engine
// so repeated lookups rarely touch the network.
package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/idleforge/forge/config"
	"github.com/idleforge/forge/internal/cache"
)

// ErrLedgerUnavailable is returned once the retry budget is exhausted
// across every endpoint. Callers may serve a previously cached value
// flagged as stale, but must never treat this as a zero balance.
var ErrLedgerUnavailable = errors.New("ledger unavailable: retry budget exhausted across all endpoints")

// errRateLimited marks a provider throttling response, which backs off
// much more aggressively than an ordinary transport failure.
var errRateLimited = errors.New("endpoint rate limited")

const (
	methodGetBalance = "ledger_getBalance"

	// rateLimitRPCCode is the JSON-RPC error code providers use for
	// throttling, alongside plain HTTP 429.
	rateLimitRPCCode = -32005

	// lastKnownTTL keeps a long-lived copy of each successful read so a
	// stale value survives provider outages well past the fresh TTL.
	lastKnownTTL = 24 * time.Hour
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) rateLimited() bool {
	if e.Code == rateLimitRPCCode || e.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

type rpcResponse struct {
	Result *json.Number `json:"result"`
	Error  *rpcError    `json:"error,omitempty"`
}

// Client is the resilient ledger read client. One instance is shared by
// all request handlers; the rotation cursor and quarantine set are
// guarded by a single mutex.
type Client struct {
	endpoints  []string
	asset      string
	store      cache.Cache
	httpClient *http.Client

	maxAttempts     int
	rateLimitBase   time.Duration
	rateLimitCap    time.Duration
	transportDelay  time.Duration
	balanceTTL      time.Duration
	quarantineReset time.Duration

	mu          sync.Mutex
	cursor      int
	quarantined map[string]bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewClient builds a client over the configured endpoint pool, layering
// reads on the provided cache engine.
func NewClient(cnf config.ChainLedgerConfig, store cache.Cache) *Client {
	return &Client{
		endpoints: cnf.Endpoints,
		asset:     cnf.AssetID,
		store:     store,
		httpClient: &http.Client{
			Timeout: time.Duration(cnf.RequestTimeoutSec) * time.Second,
		},
		maxAttempts:     cnf.MaxAttempts,
		rateLimitBase:   time.Duration(cnf.RateLimitBackoffMs) * time.Millisecond,
		rateLimitCap:    time.Duration(cnf.RateLimitBackoffCapMs) * time.Millisecond,
		transportDelay:  time.Duration(cnf.TransportBackoffMs) * time.Millisecond,
		balanceTTL:      time.Duration(cnf.BalanceTTLSec) * time.Second,
		quarantineReset: time.Duration(cnf.QuarantineResetSec) * time.Second,
		quarantined:     make(map[string]bool),
		stopCh:          make(chan struct{}),
	}
}

// Start launches the quarantine cooldown loop, which clears the
// quarantine set in full on a fixed interval for the lifetime of the
// process.
func (c *Client) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.quarantineReset)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.clearQuarantine()
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the quarantine cooldown loop. Safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *Client) clearQuarantine() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.quarantined) > 0 {
		logrus.Infof("clearing %d quarantined ledger endpoints", len(c.quarantined))
		c.quarantined = make(map[string]bool)
	}
}

// GetBalance resolves the token balance held at address. The cache is
// the dominant path under load; a miss walks the endpoint pool with
// exponential backoff on rate limits and a much shorter delay on
// transport failures, up to the configured attempt budget.
func (c *Client) GetBalance(ctx context.Context, address string) (int64, error) {
	key := balanceKey(address)
	var cached int64
	if found, err := c.store.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.rateLimitBase
	policy.MaxInterval = c.rateLimitCap
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.Reset()

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		endpoint := c.nextEndpoint()

		amount, err := c.call(ctx, endpoint, address)
		if err == nil {
			if cacheErr := c.store.Set(ctx, key, amount, c.balanceTTL); cacheErr != nil {
				logrus.Warnf("failed to cache balance for %s: %v", address, cacheErr)
			}
			if cacheErr := c.store.Set(ctx, lastKnownKey(address), amount, lastKnownTTL); cacheErr != nil {
				logrus.Warnf("failed to cache last-known balance for %s: %v", address, cacheErr)
			}
			return amount, nil
		}

		c.quarantine(endpoint)

		var delay time.Duration
		if errors.Is(err, errRateLimited) {
			delay = policy.NextBackOff()
			logrus.Warnf("ledger endpoint %s rate limited, backing off %s: %v", endpoint, delay, err)
		} else {
			delay = c.transportDelay
			logrus.Warnf("ledger endpoint %s failed: %v", endpoint, err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	return 0, errors.Wrapf(ErrLedgerUnavailable, "balance read for %s failed after %d attempts", address, c.maxAttempts)
}

// LastKnownBalance returns the most recent successfully read balance for
// address, if one is still retained. It outlives the fresh TTL so the
// caller can serve a value flagged stale during a provider outage.
func (c *Client) LastKnownBalance(ctx context.Context, address string) (int64, bool) {
	var amount int64
	found, err := c.store.Get(ctx, lastKnownKey(address), &amount)
	if err != nil || !found {
		return 0, false
	}
	return amount, true
}

// Invalidate drops every cached read for address, fresh and last-known.
func (c *Client) Invalidate(ctx context.Context, address string) error {
	pattern := fmt.Sprintf(`^balance:(last:)?%s$`, regexp.QuoteMeta(address))
	_, err := c.store.DeleteByPattern(ctx, pattern)
	return err
}

// nextEndpoint selects the next non-quarantined endpoint by round-robin.
// If every endpoint is quarantined the set is cleared and rotation
// restarts, a graceful full reset rather than a permanent failure.
func (c *Client) nextEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.endpoints); i++ {
		endpoint := c.endpoints[c.cursor%len(c.endpoints)]
		c.cursor++
		if !c.quarantined[endpoint] {
			return endpoint
		}
	}

	logrus.Warn("all ledger endpoints quarantined, resetting pool")
	c.quarantined = make(map[string]bool)
	endpoint := c.endpoints[c.cursor%len(c.endpoints)]
	c.cursor++
	return endpoint
}

func (c *Client) quarantine(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quarantined[endpoint] = true
}

// call issues one balance read against one endpoint with a bounded
// timeout. A timeout is treated identically to any other transport
// failure by the caller.
func (c *Client) call(ctx context.Context, endpoint, address string) (int64, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  methodGetBalance,
		Params:  []interface{}{address, c.asset},
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode balance request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return 0, errors.Wrap(err, "failed to build balance request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "transport failure on %s", endpoint)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logrus.Error(closeErr)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, errors.Wrapf(errRateLimited, "endpoint %s returned HTTP 429", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, errors.Errorf("endpoint %s returned HTTP %d", endpoint, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return 0, errors.Wrapf(err, "failed to decode response from %s", endpoint)
	}

	if rpcResp.Error != nil {
		if rpcResp.Error.rateLimited() {
			return 0, errors.Wrapf(errRateLimited, "endpoint %s: %s", endpoint, rpcResp.Error.Message)
		}
		return 0, errors.Errorf("endpoint %s returned error %d: %s", endpoint, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return 0, errors.Errorf("endpoint %s returned empty result", endpoint)
	}

	amount, err := rpcResp.Result.Int64()
	if err != nil {
		return 0, errors.Wrapf(err, "endpoint %s returned non-integer balance", endpoint)
	}
	return amount, nil
}

func balanceKey(address string) string {
	return fmt.Sprintf("balance:%s", address)
}

func lastKnownKey(address string) string {
	return fmt.Sprintf("balance:last:%s", address)
}
