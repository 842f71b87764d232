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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idleforge/forge"
	"github.com/idleforge/forge/config"
	"github.com/idleforge/forge/database"
	"github.com/idleforge/forge/internal/cache"
	"github.com/idleforge/forge/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		err := json.NewDecoder(resp.Body).Decode(&s.Response)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T, conf *config.Configuration) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	if conf == nil {
		conf = &config.Configuration{}
	}
	if conf.Redis.Dns == "" {
		conf.Redis.Dns = "localhost:6379"
	}
	if len(conf.ChainLedger.Endpoints) == 0 {
		conf.ChainLedger.Endpoints = []string{"http://ledger.test/rpc"}
	}
	config.MockConfig(conf)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	datasource := &database.Datasource{Conn: db}
	newForge, err := forge.NewForge(datasource, cache.NewMemoryCache(100, time.Minute))
	require.NoError(t, err)

	return NewAPI(newForge).Router(), mock
}

func TestCreateObligationAPI(t *testing.T) {
	router, mock := setupRouter(t, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payout_obligations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	body, _ := json.Marshal(map[string]interface{}{
		"player_id":   "player_1",
		"destination": "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		"network":     "mainnet",
		"amount":      5000,
		"reason_key":  "achievement:first_forge",
	})

	var response model.PayoutObligation
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewBuffer(body),
		Router:   router,
		Response: &response,
		Method:   "POST",
		Route:    "/obligations",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, response.PayoutID, "pay_")
	assert.Equal(t, model.StatusPending, response.Status)
}

func TestCreateObligationAPIValidation(t *testing.T) {
	router, _ := setupRouter(t, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"player_id":  "player_1",
		"reason_key": "NotAReason",
	})

	resp, err := SetUpTestRequest(TestRequest{
		Payload: bytes.NewBuffer(body),
		Router:  router,
		Method:  "POST",
		Route:   "/obligations",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRecordBurnAPIInvalidProof(t *testing.T) {
	router, _ := setupRouter(t, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"player_id":       "player_1",
		"destination":     "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		"network":         "mainnet",
		"proof_reference": "not-a-proof!",
		"amount":          1000,
	})

	resp, err := SetUpTestRequest(TestRequest{
		Payload: bytes.NewBuffer(body),
		Router:  router,
		Method:  "POST",
		Route:   "/burns",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetPendingObligationsAPIRequiresNetwork(t *testing.T) {
	router, _ := setupRouter(t, nil)

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: "GET",
		Route:  "/obligations/pending",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetRewardTiersAPI(t *testing.T) {
	router, mock := setupRouter(t, nil)

	rows := sqlmock.NewRows([]string{"tier_id", "name", "description", "rarity", "cost", "created_at"}).
		AddRow("tier_1", "Ember Shard", "", model.RarityCommon, int64(100), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM reward_tiers")).WillReturnRows(rows)

	var response []model.RewardTier
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &response,
		Method:   "GET",
		Route:    "/tiers",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, response, 1)
	assert.Equal(t, "tier_1", response[0].TierID)
}

func TestGetCacheStatsAPI(t *testing.T) {
	router, _ := setupRouter(t, nil)

	var response cache.Stats
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &response,
		Method:   "GET",
		Route:    "/cache/stats",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0, response.Size)
}

func TestSecretKeyAuth(t *testing.T) {
	router, _ := setupRouter(t, &config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "forge-secret"},
	})

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: "GET",
		Route:  "/tiers",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/cache/stats", nil)
	req.Header.Set("X-Forge-Key", "forge-secret")
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}
