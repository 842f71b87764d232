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

// ClaimPayout moves a pending obligation to claim_requested, marking
// that the external disbursement process has picked it up.
func (f *Forge) ClaimPayout(ctx context.Context, id string) (*model.PayoutObligation, error) {
	return f.transitionPayout(ctx, id, model.StatusClaimRequested, "")
}

// CompletePayout marks an obligation as disbursed. The proof reference
// of the disbursement transaction is stored on the row.
func (f *Forge) CompletePayout(ctx context.Context, id, proofReference string) (*model.PayoutObligation, error) {
	if proofReference != "" && !model.IsValidProofReference(proofReference) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Proof reference is not a valid transaction signature", nil)
	}
	return f.transitionPayout(ctx, id, model.StatusCompleted, proofReference)
}

// FailPayout marks an obligation as permanently failed. The reason key
// becomes grantable again for the player.
func (f *Forge) FailPayout(ctx context.Context, id string) (*model.PayoutObligation, error) {
	return f.transitionPayout(ctx, id, model.StatusFailed, "")
}

func (f *Forge) transitionPayout(ctx context.Context, id, newStatus, proofReference string) (*model.PayoutObligation, error) {
	obligation, err := f.datasource.TransitionObligation(ctx, id, newStatus, proofReference)
	if err != nil {
		return nil, err
	}

	err = f.SendWebhook(NewWebhook{Event: getEventFromStatus(obligation.Status), Reference: obligation.PayoutID, Payload: obligation})
	if err != nil {
		logrus.Errorf("failed to enqueue payout webhook: %v", err)
	}

	return obligation, nil
}
