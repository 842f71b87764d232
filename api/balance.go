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

	"github.com/gin-gonic/gin"

	"github.com/idleforge/forge/internal/apierror"
)

// GetBalance reads an on-chain balance for an address. The response
// carries a stale flag when the chain ledger was unreachable and the
// value comes from the last successful read.
//
// Responses:
// - 200 OK: The balance, possibly stale.
// - 503 Service Unavailable: The ledger is down and no cached value exists.
func (a Api) GetBalance(c *gin.Context) {
	address, passed := c.Params.Get("address")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required. pass address in the route /:address"})
		return
	}

	resp, err := a.forge.GetPlayerBalance(c.Request.Context(), address)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) InvalidateBalance(c *gin.Context) {
	address, passed := c.Params.Get("address")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required. pass address in the route /:address"})
		return
	}

	if err := a.forge.InvalidateBalance(c.Request.Context(), address); err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "balance cache invalidated"})
}

func (a Api) GetCacheStats(c *gin.Context) {
	stats, err := a.forge.CacheStats(c.Request.Context())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
