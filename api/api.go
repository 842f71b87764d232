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

	"github.com/idleforge/forge"
	"github.com/idleforge/forge/api/middleware"
	"github.com/idleforge/forge/config"
)

type Api struct {
	forge  *forge.Forge
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/balances/:address", a.GetBalance)
	router.DELETE("/balances/:address", a.InvalidateBalance)

	router.POST("/burns", a.RecordBurn)
	router.GET("/burns/players/:player_id", a.GetPlayerBurns)

	router.POST("/obligations", a.CreateObligation)
	router.GET("/obligations", a.GetObligations)
	router.GET("/obligations/pending", a.GetPendingObligations)
	router.GET("/obligations/:id", a.GetObligation)
	router.POST("/obligations/:id/claim", a.ClaimObligation)
	router.POST("/obligations/:id/complete", a.CompleteObligation)
	router.POST("/obligations/:id/fail", a.FailObligation)

	router.POST("/tiers", a.CreateRewardTier)
	router.GET("/tiers", a.GetRewardTiers)

	router.GET("/cache/stats", a.GetCacheStats)
	return a.router
}

func NewAPI(f *forge.Forge) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{forge: f, router: r}
}
