package internal

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var rdb *redis.Client
var ctx = context.Background()
var memCache *cache.Cache

var memoryDataExpiration time.Duration

var redisInitialized bool

// InitCache initializes the in-memory cache and a redis tier behind it.
// The redis tier lets multiple replicas share one upstream response cache,
// so a fleet of pollers does not multiply the met.no request volume.
func InitCache(redisURI string, redisURI2 string, redisURI3 string, redisPassword string, redisDB int, defaultExpiration time.Duration) {
	var failOverOptions = redis.FailoverOptions{
		MasterName:       "mymaster",
		SentinelAddrs:    []string{redisURI, redisURI2, redisURI3},
		SentinelPassword: redisPassword,
		Password:         redisPassword,
		DB:               redisDB,
	}
	zap.S().Debugf("Initializing redis cache with options: %#v", failOverOptions)

	rdb = redis.NewFailoverClient(&failOverOptions)

	memoryDataExpiration = defaultExpiration
	memCache = cache.New(memoryDataExpiration, 2*memoryDataExpiration)
	redisInitialized = true
}

// InitMemcache initializes the in-memory cache only. This is the default;
// the redis tier is opt-in via the [cache] config table.
func InitMemcache(defaultExpiration time.Duration) {
	memoryDataExpiration = defaultExpiration
	memCache = cache.New(defaultExpiration, 2*defaultExpiration)
	redisInitialized = false
}

func IsRedisAvailable() bool {
	if !redisInitialized {
		return false
	}
	if rdb != nil {
		timeout, cancel := context.WithTimeout(ctx, TenSeconds)
		defer cancel()
		statusCmd := rdb.Ping(timeout)

		if statusCmd != nil && statusCmd.Val() == "PONG" {
			return true
		}
		zap.S().Debugf("Redis Error: %s", statusCmd)
	}
	return false
}

// GetTiered attempts to get key from the memory cache, falling back to redis.
// Values fetched from redis are written back into the memory cache.
func GetTiered(key string) (cached bool, value []byte) {
	if memCache == nil {
		return false, nil
	}

	v, found := memCache.Get(key)
	if found {
		value, found = v.([]byte)
		return found, value
	}

	if !redisInitialized {
		return false, nil
	}

	d := time.Now().Add(memoryDataExpiration)
	rctx, cancel := context.WithDeadline(context.Background(), d)
	defer cancel()

	value, err := rdb.Get(rctx, key).Bytes()
	if err != nil {
		return false, nil
	}

	memCache.SetDefault(key, value)
	return true, value
}

// SetTiered sets the memory cache and, when initialized, redis with expiration.
func SetTiered(key string, value []byte, expiration time.Duration) {
	if memCache == nil {
		return
	}
	memCache.Set(key, value, expiration)
	if redisInitialized {
		rdb.Set(ctx, key, value, expiration)
	}
}

func SetMemcached(key string, value interface{}) {
	if memCache == nil {
		return
	}
	memCache.SetDefault(key, value)
}

func GetMemcached(key string) (value interface{}, found bool) {
	if memCache == nil {
		return nil, false
	}
	value, found = memCache.Get(key)
	return
}
