// Package cache decorates repositories with a Redis read-through cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"formsapi/internal/config"
	"formsapi/internal/logger"
	"formsapi/internal/model"
	"formsapi/internal/repository"
)

// ErrDisabled is returned by NewClient when no address is configured.
var ErrDisabled = errors.New("redis cache disabled")

const keyPrefix = "formsapi:form:"

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, ErrDisabled
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cli, nil
}

// cachedForm keeps the creator id, which the API representation hides.
type cachedForm struct {
	model.Form
	CreatedByID string `json:"created_by_id"`
}

// DefaultTTL bounds how long a cached form can outlive a write.
const DefaultTTL = time.Minute

// FormCache is a read-through cache in front of a FormRepository. Lookups
// by id are cached for ttl; writes invalidate the entry. Redis failures are
// logged and the call falls through to the wrapped repository.
//
// A miss that read the row before a concurrent Update committed can store
// the old form after the invalidation; it is served until ttl expires.
type FormCache struct {
	next   repository.FormRepository
	client redis.Cmdable
	ttl    time.Duration
	log    *logrus.Entry
}

var _ repository.FormRepository = (*FormCache)(nil)

// NewFormCache wraps next. A non-positive ttl uses DefaultTTL so entries always expire.
func NewFormCache(next repository.FormRepository, client redis.Cmdable, ttl time.Duration) *FormCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FormCache{next: next, client: client, ttl: ttl, log: logger.Component("form_cache")}
}

func formKey(id string) string { return keyPrefix + id }

func (c *FormCache) Create(ctx context.Context, f *model.Form) (*model.Form, error) {
	return c.next.Create(ctx, f)
}

func (c *FormCache) FindByID(ctx context.Context, id string) (*model.Form, error) {
	key := formKey(id)
	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cf cachedForm
		if err := json.Unmarshal([]byte(raw), &cf); err == nil {
			cf.Form.CreatedBy = cf.CreatedByID
			return &cf.Form, nil
		}
		c.log.WithField("key", key).Warn("dropping undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithField("key", key).WithError(err).Warn("cache read failed")
	}

	f, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(cachedForm{Form: *f, CreatedByID: f.CreatedBy})
	if err != nil {
		return f, nil
	}
	if err := c.client.Set(ctx, key, string(b), c.ttl).Err(); err != nil {
		c.log.WithField("key", key).WithError(err).Warn("cache write failed")
	}
	return f, nil
}

func (c *FormCache) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Form], error) {
	return c.next.List(ctx, pq)
}

func (c *FormCache) Update(ctx context.Context, f *model.Form) (*model.Form, error) {
	out, err := c.next.Update(ctx, f)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, f.ID)
	return out, nil
}

func (c *FormCache) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *FormCache) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, formKey(id)).Err(); err != nil {
		c.log.WithField("key", formKey(id)).WithError(err).Warn("cache invalidation failed")
	}
}
