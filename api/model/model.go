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
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/idleforge/forge"
	"github.com/idleforge/forge/model"
)

// RecordBurn is the request body for feeding tokens into The Forge.
type RecordBurn struct {
	PlayerID       string `json:"player_id"`
	Destination    string `json:"destination"`
	Network        string `json:"network"`
	ProofReference string `json:"proof_reference"`
	Amount         int64  `json:"amount"`
}

func proofReferenceValidation(value interface{}) error {
	proof, _ := value.(string)
	if !model.IsValidProofReference(proof) {
		return errors.New("proof_reference must be a base58 transaction signature")
	}
	return nil
}

func reasonKeyValidation(value interface{}) error {
	reason, _ := value.(string)
	if !model.IsValidReasonKey(reason) {
		return errors.New("reason_key must look like 'category:identifier'")
	}
	return nil
}

func (b *RecordBurn) ValidateRecordBurn() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.PlayerID, validation.Required),
		validation.Field(&b.Destination, validation.Required),
		validation.Field(&b.Network, validation.Required),
		validation.Field(&b.ProofReference, validation.Required, validation.By(proofReferenceValidation)),
		validation.Field(&b.Amount, validation.Required, validation.Min(int64(1))),
	)
}

func (b *RecordBurn) ToBurnRequest() forge.BurnRequest {
	return forge.BurnRequest{
		PlayerID:       b.PlayerID,
		Destination:    b.Destination,
		Network:        b.Network,
		ProofReference: b.ProofReference,
		InputAmount:    b.Amount,
	}
}

// CreateObligation is the request body for granting a fixed reward.
type CreateObligation struct {
	PlayerID    string                 `json:"player_id"`
	Destination string                 `json:"destination"`
	Network     string                 `json:"network"`
	Amount      int64                  `json:"amount"`
	ReasonKey   string                 `json:"reason_key"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

func (o *CreateObligation) ValidateCreateObligation() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.PlayerID, validation.Required),
		validation.Field(&o.Destination, validation.Required),
		validation.Field(&o.Network, validation.Required),
		validation.Field(&o.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&o.ReasonKey, validation.Required, validation.By(reasonKeyValidation)),
	)
}

func (o *CreateObligation) ToRewardRequest() forge.RewardRequest {
	return forge.RewardRequest{
		PlayerID:    o.PlayerID,
		Destination: o.Destination,
		Network:     o.Network,
		Amount:      o.Amount,
		ReasonKey:   o.ReasonKey,
		MetaData:    o.MetaData,
	}
}

// CompleteObligation carries the disbursement proof for a completion.
type CompleteObligation struct {
	ProofReference string `json:"proof_reference"`
}

// CreateRewardTier is the request body for adding a tier to the catalog.
type CreateRewardTier struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Rarity      string `json:"rarity"`
	Cost        int64  `json:"cost"`
}

func rarityValidation(value interface{}) error {
	rarity, _ := value.(string)
	if model.RarityRank(rarity) < 0 {
		return errors.New("rarity must be one of common, uncommon, rare, epic, legendary")
	}
	return nil
}

func (t *CreateRewardTier) ValidateCreateRewardTier() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.Rarity, validation.Required, validation.By(rarityValidation)),
		validation.Field(&t.Cost, validation.Required, validation.Min(int64(1))),
	)
}

func (t *CreateRewardTier) ToRewardTier() model.RewardTier {
	return model.RewardTier{
		Name:        t.Name,
		Description: t.Description,
		Rarity:      t.Rarity,
		Cost:        t.Cost,
	}
}
