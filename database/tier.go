package database

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/model"
)

const allTiersCacheKey = "tiers:all"

func (d *Datasource) CreateRewardTier(ctx context.Context, tier model.RewardTier) (model.RewardTier, error) {
	tier.TierID = model.GenerateUUIDWithSuffix("tier")
	tier.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO reward_tiers (tier_id, name, description, rarity, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tier.TierID, tier.Name, tier.Description, tier.Rarity, tier.Cost, tier.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.RewardTier{}, apierror.NewAPIError(apierror.ErrConflict, "Reward tier already exists", err)
		}
		return model.RewardTier{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create reward tier", err)
	}

	if d.Cache != nil {
		if err := d.Cache.Delete(ctx, allTiersCacheKey); err != nil {
			logrus.Warnf("failed to invalidate tier cache: %v", err)
		}
	}

	return tier, nil
}

// GetAllRewardTiers returns the full tier catalog. The catalog changes
// rarely and is read on every burn, so it is cached for a few minutes.
func (d *Datasource) GetAllRewardTiers(ctx context.Context) ([]model.RewardTier, error) {
	if d.Cache != nil {
		var cached []model.RewardTier
		ok, err := d.Cache.Get(ctx, allTiersCacheKey, &cached)
		if err == nil && ok {
			// The memory backend hands back the stored slice itself, so
			// callers get a copy to keep the cached catalog immutable.
			out := make([]model.RewardTier, len(cached))
			copy(out, cached)
			return out, nil
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT tier_id, name, description, rarity, cost, created_at
		FROM reward_tiers
		ORDER BY cost ASC
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reward tiers", err)
	}
	defer rows.Close()

	tiers := []model.RewardTier{}
	for rows.Next() {
		tier := model.RewardTier{}
		err := rows.Scan(&tier.TierID, &tier.Name, &tier.Description, &tier.Rarity, &tier.Cost, &tier.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan reward tier", err)
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over reward tiers", err)
	}

	if d.Cache != nil {
		snapshot := make([]model.RewardTier, len(tiers))
		copy(snapshot, tiers)
		if err := d.Cache.Set(ctx, allTiersCacheKey, snapshot, 5*time.Minute); err != nil {
			logrus.Warnf("failed to cache reward tiers: %v", err)
		}
	}

	return tiers, nil
}
