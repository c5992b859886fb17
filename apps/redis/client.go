package redis

import (
	"context"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/redis/go-redis/v9"
)

var (
	// Client is the universal Redis client that works with both single nodes and clusters
	Client redis.UniversalClient
	ctx    = context.Background()
)

// RedisConfig holds the Redis configuration
type RedisConfig struct {
	Addresses    []string      `json:"addresses"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	// Sentinel-specific settings (MasterName triggers sentinel mode)
	MasterName       string `json:"master_name"`
	SentinelPassword string `json:"sentinel_password"`
}

// Initialize creates a new Redis universal client connection.
// Supports single node, cluster and sentinel configurations via config.yml:
//
//	REDIS:
//	  ADDRESS: "localhost:6379"         # single node
//	  ADDRESSES: "r1:6379,r2:6379"      # cluster
//	  MASTER_NAME: "mymaster"           # sentinel mode
func Initialize() error {
	config := loadConfig()

	// Redis is optional, gateway throttling degrades to pass-through without it
	if len(config.Addresses) == 0 {
		log.Info("Redis not configured. Rate limiting will be disabled.")
		return nil
	}

	opts := &redis.UniversalOptions{
		Addrs:            config.Addresses,
		Password:         config.Password,
		DB:               config.DB,
		MaxRetries:       config.MaxRetries,
		DialTimeout:      config.DialTimeout,
		ReadTimeout:      config.ReadTimeout,
		WriteTimeout:     config.WriteTimeout,
		PoolSize:         config.PoolSize,
		MinIdleConns:     config.MinIdleConns,
		MasterName:       config.MasterName,
		SentinelPassword: config.SentinelPassword,
	}

	// NewUniversalClient returns:
	// - ClusterClient when len(Addrs) > 1 and no MasterName
	// - FailoverClient when MasterName is set (Sentinel mode)
	// - Simple Client when len(Addrs) == 1 and no MasterName
	Client = redis.NewUniversalClient(opts)

	testCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Client.Ping(testCtx).Err(); err != nil {
		log.Warning("Redis connection failed: %v. Rate limiting will be disabled.", err)
		Client = nil
		return nil
	}

	log.Info("Redis connected (%d node(s))", len(config.Addresses))
	return nil
}

// loadConfig reads Redis configuration from settings
func loadConfig() RedisConfig {
	config := RedisConfig{
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	}

	addresses := settings.Get("REDIS.ADDRESSES").String()
	if addresses == "" {
		addresses = settings.Get("REDIS.ADDRESS").String()
	}
	for _, addr := range strings.Split(addresses, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			config.Addresses = append(config.Addresses, addr)
		}
	}

	config.Password = settings.Get("REDIS.PASSWORD").String()
	config.DB = settings.Get("REDIS.DB").Int()

	if poolSize := settings.Get("REDIS.POOL_SIZE").Int(); poolSize > 0 {
		config.PoolSize = poolSize
	}
	if minIdle := settings.Get("REDIS.MIN_IDLE_CONNS").Int(); minIdle > 0 {
		config.MinIdleConns = minIdle
	}
	if maxRetries := settings.Get("REDIS.MAX_RETRIES").Int(); maxRetries > 0 {
		config.MaxRetries = maxRetries
	}

	config.MasterName = settings.Get("REDIS.MASTER_NAME").String()
	config.SentinelPassword = settings.Get("REDIS.SENTINEL_PASSWORD").String()

	return config
}

// IsAvailable returns true if Redis client is connected
func IsAvailable() bool {
	if Client == nil {
		return false
	}
	return Client.Ping(ctx).Err() == nil
}

// Close gracefully closes the Redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}
