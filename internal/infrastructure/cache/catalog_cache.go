// Package cache envuelve el catálogo externo de productos con una caché Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

// ErrMiss la clave no está en caché.
var ErrMiss = errors.New("cache: miss")

// Cache almacén clave/valor con TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache adapta *redis.Client a Cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache construye el adaptador.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get devuelve ErrMiss si la clave no existe.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

// Set guarda el valor con TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

var _ repository.ProductCatalog = (*CachedCatalog)(nil)

// CachedCatalog catálogo con caché de lectura. Las consultas simultáneas del mismo producto
// se agrupan (singleflight) y una caché caída degrada a leer del catálogo.
// Los productos inexistentes no se guardan: un alta posterior en el catálogo se ve de inmediato.
type CachedCatalog struct {
	next  repository.ProductCatalog
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
	group singleflight.Group
}

// NewCachedCatalog construye el decorador.
func NewCachedCatalog(next repository.ProductCatalog, cache Cache, ttl time.Duration, log zerolog.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCatalog{next: next, cache: cache, ttl: ttl, log: log}
}

func productKey(id int64) string {
	return "pcp:product:" + strconv.FormatInt(id, 10)
}

// GetByID consulta la caché y, si falla, el catálogo.
func (c *CachedCatalog) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	key := productKey(id)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var p entity.Product
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			return &p, nil
		}
		c.log.Warn().Str("cache_key", key).Msg("entrada de caché ilegible, se ignora")
	} else if !errors.Is(err, ErrMiss) {
		c.log.Warn().Err(err).Str("cache_key", key).Msg("caché de productos no disponible")
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.next.GetByID(ctx, id)
		if err != nil || p == nil {
			return p, err
		}
		if raw, jerr := json.Marshal(p); jerr == nil {
			if serr := c.cache.Set(ctx, key, raw, c.ttl); serr != nil {
				c.log.Warn().Err(serr).Str("cache_key", key).Msg("no se pudo guardar en caché")
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("catálogo de productos: %w", err)
	}
	p, _ := v.(*entity.Product)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}
