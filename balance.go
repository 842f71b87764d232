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

package forge

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/internal/chainrpc"
)

// PlayerBalance holds a chain balance read. Stale is true when the
// upstream ledger was unreachable and the value is the last balance
// observed before the outage.
type PlayerBalance struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
	Stale   bool   `json:"stale"`
}

// GetPlayerBalance reads an on-chain balance through the rotating
// endpoint pool. When every endpoint is exhausted it degrades to the
// last known balance rather than reporting zero; an unknown balance is
// an error, never a zero.
func (f *Forge) GetPlayerBalance(ctx context.Context, address string) (*PlayerBalance, error) {
	amount, err := f.chain.GetBalance(ctx, address)
	if err == nil {
		return &PlayerBalance{Address: address, Amount: amount, Stale: false}, nil
	}
	if !errors.Is(err, chainrpc.ErrLedgerUnavailable) {
		return nil, err
	}

	stale, ok := f.chain.LastKnownBalance(ctx, address)
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrUnavailable, "Chain ledger is unavailable and no cached balance exists", err)
	}
	logrus.Warnf("serving stale balance for %s: %v", address, err)
	return &PlayerBalance{Address: address, Amount: stale, Stale: true}, nil
}

// InvalidateBalance drops the cached balance for an address, forcing
// the next read to hit the chain.
func (f *Forge) InvalidateBalance(ctx context.Context, address string) error {
	return f.chain.Invalidate(ctx, address)
}
