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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"FORGE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"FORGE_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"FORGE_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"FORGE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"FORGE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"FORGE_REDIS_SKIP_TLS_VERIFY"`
}

// ChainLedgerConfig describes the pool of external ledger read endpoints
// and the retry posture of the resilient client.
type ChainLedgerConfig struct {
	Endpoints             []string `json:"endpoints" envconfig:"FORGE_CHAIN_ENDPOINTS"`
	AssetID               string   `json:"asset_id" envconfig:"FORGE_CHAIN_ASSET_ID"`
	RequestTimeoutSec     int      `json:"request_timeout_sec" envconfig:"FORGE_CHAIN_REQUEST_TIMEOUT_SEC"`
	MaxAttempts           int      `json:"max_attempts" envconfig:"FORGE_CHAIN_MAX_ATTEMPTS"`
	RateLimitBackoffMs    int      `json:"rate_limit_backoff_ms" envconfig:"FORGE_CHAIN_RATE_LIMIT_BACKOFF_MS"`
	RateLimitBackoffCapMs int      `json:"rate_limit_backoff_cap_ms" envconfig:"FORGE_CHAIN_RATE_LIMIT_BACKOFF_CAP_MS"`
	TransportBackoffMs    int      `json:"transport_backoff_ms" envconfig:"FORGE_CHAIN_TRANSPORT_BACKOFF_MS"`
	QuarantineResetSec    int      `json:"quarantine_reset_sec" envconfig:"FORGE_CHAIN_QUARANTINE_RESET_SEC"`
	BalanceTTLSec         int      `json:"balance_ttl_sec" envconfig:"FORGE_CHAIN_BALANCE_TTL_SEC"`
}

// CacheConfig controls the in-process cache engine. Backend may be
// "memory" or "redis".
type CacheConfig struct {
	Backend          string `json:"backend" envconfig:"FORGE_CACHE_BACKEND"`
	Capacity         int    `json:"capacity" envconfig:"FORGE_CACHE_CAPACITY"`
	SweepIntervalSec int    `json:"sweep_interval_sec" envconfig:"FORGE_CACHE_SWEEP_INTERVAL_SEC"`
}

type LotteryConfig struct {
	TaxRate              float64 `json:"tax_rate" envconfig:"FORGE_LOTTERY_TAX_RATE"`
	LuckSaturationAmount int64   `json:"luck_saturation_amount" envconfig:"FORGE_LOTTERY_LUCK_SATURATION_AMOUNT"`
}

type QueueConfig struct {
	WebhookQueue      string `json:"webhook_queue" envconfig:"FORGE_QUEUE_WEBHOOK_QUEUE"`
	WorkerConcurrency int    `json:"worker_concurrency" envconfig:"FORGE_QUEUE_WORKER_CONCURRENCY"`
	MaxRetryAttempts  int    `json:"max_retry_attempts" envconfig:"FORGE_QUEUE_MAX_RETRY_ATTEMPTS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"FORGE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"FORGE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"FORGE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Notification struct {
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string            `json:"project_name" envconfig:"FORGE_PROJECT_NAME"`
	Server       ServerConfig      `json:"server"`
	DataSource   DataSourceConfig  `json:"data_source"`
	Redis        RedisConfig       `json:"redis"`
	ChainLedger  ChainLedgerConfig `json:"chain_ledger"`
	Cache        CacheConfig       `json:"cache"`
	Lottery      LotteryConfig     `json:"lottery"`
	Queue        QueueConfig       `json:"queue"`
	RateLimit    RateLimitConfig   `json:"rate_limit"`
	Notification Notification      `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if closeErr := f.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("forge", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called forge.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Forge Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if len(cnf.ChainLedger.Endpoints) == 0 {
		log.Println("Error: No chain ledger endpoints configured. At least one is required.")
		return errors.New("chain ledger endpoints are required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	for i, endpoint := range cnf.ChainLedger.Endpoints {
		cnf.ChainLedger.Endpoints[i] = strings.TrimSpace(endpoint)
	}

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.ChainLedger.AssetID == "" {
		cnf.ChainLedger.AssetID = "FORGE"
	}
	if cnf.ChainLedger.RequestTimeoutSec <= 0 {
		cnf.ChainLedger.RequestTimeoutSec = 5
	}
	if cnf.ChainLedger.MaxAttempts <= 0 {
		cnf.ChainLedger.MaxAttempts = 6
	}
	if cnf.ChainLedger.RateLimitBackoffMs <= 0 {
		cnf.ChainLedger.RateLimitBackoffMs = 500
	}
	if cnf.ChainLedger.RateLimitBackoffCapMs <= 0 {
		cnf.ChainLedger.RateLimitBackoffCapMs = 8000
	}
	if cnf.ChainLedger.TransportBackoffMs <= 0 {
		cnf.ChainLedger.TransportBackoffMs = 50
	}
	if cnf.ChainLedger.QuarantineResetSec <= 0 {
		cnf.ChainLedger.QuarantineResetSec = 300
	}
	if cnf.ChainLedger.BalanceTTLSec <= 0 {
		cnf.ChainLedger.BalanceTTLSec = 300
	}

	if cnf.Cache.Backend == "" {
		cnf.Cache.Backend = "memory"
	}
	if cnf.Cache.Capacity <= 0 {
		cnf.Cache.Capacity = 10000
	}
	if cnf.Cache.SweepIntervalSec <= 0 {
		cnf.Cache.SweepIntervalSec = 60
	}

	if cnf.Lottery.TaxRate <= 0 || cnf.Lottery.TaxRate >= 1 {
		cnf.Lottery.TaxRate = 0.20
	}
	if cnf.Lottery.LuckSaturationAmount <= 0 {
		cnf.Lottery.LuckSaturationAmount = 1000000
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.WorkerConcurrency <= 0 {
		cnf.Queue.WorkerConcurrency = 10
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyTestDefaults()
	ConfigStore.Store(mockConfig)
}

// applyTestDefaults fills the zero-value gaps a test fixture usually
// leaves open, without enforcing the required-field checks.
func (cnf *Configuration) applyTestDefaults() {
	if cnf.Cache.Capacity <= 0 {
		cnf.Cache.Capacity = 10000
	}
	if cnf.Cache.SweepIntervalSec <= 0 {
		cnf.Cache.SweepIntervalSec = 60
	}
	if cnf.ChainLedger.RequestTimeoutSec <= 0 {
		cnf.ChainLedger.RequestTimeoutSec = 5
	}
	if cnf.ChainLedger.MaxAttempts <= 0 {
		cnf.ChainLedger.MaxAttempts = 6
	}
	if cnf.ChainLedger.RateLimitBackoffMs <= 0 {
		cnf.ChainLedger.RateLimitBackoffMs = 10
	}
	if cnf.ChainLedger.RateLimitBackoffCapMs <= 0 {
		cnf.ChainLedger.RateLimitBackoffCapMs = 50
	}
	if cnf.ChainLedger.TransportBackoffMs <= 0 {
		cnf.ChainLedger.TransportBackoffMs = 1
	}
	if cnf.ChainLedger.QuarantineResetSec <= 0 {
		cnf.ChainLedger.QuarantineResetSec = 300
	}
	if cnf.ChainLedger.BalanceTTLSec <= 0 {
		cnf.ChainLedger.BalanceTTLSec = 300
	}
	if cnf.Lottery.TaxRate <= 0 || cnf.Lottery.TaxRate >= 1 {
		cnf.Lottery.TaxRate = 0.20
	}
	if cnf.Lottery.LuckSaturationAmount <= 0 {
		cnf.Lottery.LuckSaturationAmount = 1000000
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
