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
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idleforge/forge/config"
	"github.com/idleforge/forge/database"
	"github.com/idleforge/forge/internal/cache"
	"github.com/idleforge/forge/internal/chainrpc"
	"github.com/idleforge/forge/model"
)

// Forge is the main entry point of the reward distribution service. It
// ties together the payout ledger, the chain balance client, the reward
// lottery and the webhook queue.
type Forge struct {
	queue      *Queue
	datasource database.IDataSource
	chain      *chainrpc.Client
	store      cache.Cache
	selector   *RaritySelector
}

// NewCache builds the cache backend selected in configuration. The
// memory backend is the default; redis is used when the service runs
// as multiple replicas.
func NewCache(conf *config.Configuration) (cache.Cache, error) {
	if conf.Cache.Backend == "redis" {
		return cache.NewRedisCache([]string{conf.Redis.Dns}, conf.Redis.SkipTLSVerify)
	}
	return cache.NewMemoryCache(conf.Cache.Capacity, time.Duration(conf.Cache.SweepIntervalSec)*time.Second), nil
}

// NewForge initializes a new Forge instance with the provided datasource
// and cache store. The store is shared with the chain client so balance
// reads survive upstream outages.
func NewForge(db database.IDataSource, store cache.Cache) (*Forge, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	chain := chainrpc.NewClient(configuration.ChainLedger, store)
	selector := NewRaritySelector(configuration.Lottery.LuckSaturationAmount, rand.New(rand.NewSource(time.Now().UnixNano())))
	newForge := &Forge{
		datasource: db,
		queue:      NewQueue(configuration),
		chain:      chain,
		store:      store,
		selector:   selector,
	}
	return newForge, nil
}

// Start launches the background loops: the quarantine reset of the
// chain client and, for the memory backend, the expiry sweeper.
func (f *Forge) Start(ctx context.Context) {
	f.chain.Start(ctx)
	if mc, ok := f.store.(*cache.MemoryCache); ok {
		mc.Start(ctx)
	}
}

func (f *Forge) Stop() {
	f.chain.Stop()
	if err := f.queue.Close(); err != nil {
		logrus.Errorf("failed to close queue: %v", err)
	}
	if mc, ok := f.store.(*cache.MemoryCache); ok {
		mc.Stop()
	}
}

func (f *Forge) CreateRewardTier(ctx context.Context, tier model.RewardTier) (model.RewardTier, error) {
	return f.datasource.CreateRewardTier(ctx, tier)
}

func (f *Forge) GetRewardTiers(ctx context.Context) ([]model.RewardTier, error) {
	return f.datasource.GetAllRewardTiers(ctx)
}

func (f *Forge) GetObligation(ctx context.Context, id string) (*model.PayoutObligation, error) {
	return f.datasource.GetObligationByID(ctx, id)
}

func (f *Forge) GetPendingObligations(ctx context.Context, network string, limit, offset int) ([]*model.PayoutObligation, error) {
	return f.datasource.GetPendingObligations(ctx, network, limit, offset)
}

func (f *Forge) GetObligations(ctx context.Context, status, playerID string, limit, offset int) ([]*model.PayoutObligation, error) {
	return f.datasource.GetObligations(ctx, status, playerID, limit, offset)
}

func (f *Forge) GetBurnsByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*model.BurnRecord, error) {
	return f.datasource.GetBurnsByPlayer(ctx, playerID, limit, offset)
}

func (f *Forge) CacheStats(ctx context.Context) (cache.Stats, error) {
	return f.store.Stats(ctx)
}
