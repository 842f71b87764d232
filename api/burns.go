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

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/idleforge/forge/api/model"
	"github.com/idleforge/forge/internal/apierror"
)

// RecordBurn handles a player feeding tokens into The Forge. It binds
// the incoming JSON request, validates it, and runs the burn flow.
//
// Responses:
// - 201 Created: The burn was recorded and a reward tier awarded.
// - 400 Bad Request: Malformed body, invalid proof, or unaffordable amount.
// - 409 Conflict: The proof reference was already redeemed.
func (a Api) RecordBurn(c *gin.Context) {
	var newBurn model2.RecordBurn
	if err := c.ShouldBindJSON(&newBurn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newBurn.ValidateRecordBurn()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.forge.ProcessBurn(c.Request.Context(), newBurn.ToBurnRequest())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetPlayerBurns(c *gin.Context) {
	playerID, passed := c.Params.Get("player_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id is required. pass player_id in the route /:player_id"})
		return
	}

	limit, offset := paginationParams(c)
	resp, err := a.forge.GetBurnsByPlayer(c.Request.Context(), playerID, limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func paginationParams(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
