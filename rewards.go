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

	"github.com/sirupsen/logrus"

	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/model"
)

// RewardRequest describes a fixed reward grant, such as an achievement
// or milestone bonus. The reason key is the idempotency handle: the
// same player can earn each reason at most once, however many times the
// grant is retried.
type RewardRequest struct {
	PlayerID    string
	Destination string
	Network     string
	Amount      int64
	ReasonKey   string
	MetaData    map[string]interface{}
}

// GrantReward creates a payout obligation for a fixed reward. A
// duplicate grant is not an error: the existing obligation is returned
// as if it had just been created, so callers can retry blindly.
func (f *Forge) GrantReward(ctx context.Context, req RewardRequest) (*model.PayoutObligation, error) {
	if !model.IsValidReasonKey(req.ReasonKey) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Reason key must look like 'category:identifier'", nil)
	}
	if req.Amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Reward amount must be positive", nil)
	}

	obligation := &model.PayoutObligation{
		PlayerID:    req.PlayerID,
		Destination: req.Destination,
		Network:     req.Network,
		Amount:      req.Amount,
		ReasonKey:   req.ReasonKey,
		MetaData:    req.MetaData,
	}

	saved, err := f.datasource.CreateObligation(ctx, obligation)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
			logrus.Infof("reward %s already granted to %s", req.ReasonKey, req.PlayerID)
			return f.datasource.GetObligationByReason(ctx, req.PlayerID, req.ReasonKey)
		}
		return nil, err
	}

	err = f.SendWebhook(NewWebhook{Event: "payout.pending", Reference: saved.PayoutID, Payload: saved})
	if err != nil {
		logrus.Errorf("failed to enqueue payout webhook: %v", err)
	}

	return saved, nil
}
