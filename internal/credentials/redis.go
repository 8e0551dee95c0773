package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/pkg/model"
)

// RedisStore keeps a workspace's credentials in redis under a key prefix,
// so they survive console restarts and are shared by console replicas.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisStore scopes a store to prefix (e.g. "console:<workspace>:").
// ttl bounds every entry; zero means no expiry.
func NewRedisStore(rdb redis.Cmdable, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// read returns the entry value, treating any storage error as absence.
func (s *RedisStore) read(ctx context.Context, name string) string {
	if s.rdb == nil {
		return ""
	}
	val, err := s.rdb.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return ""
	}
	if err != nil {
		s.logger.Warn("store.redis.get_failed", zap.String("entry", name), zap.Error(err))
		return ""
	}
	return val
}

func (s *RedisStore) Get(ctx context.Context) (model.Credential, bool) {
	access := s.read(ctx, AccessKey)
	if access == "" || looksExpired(access, s.now()) {
		return model.Credential{}, false
	}
	return model.Credential{Access: access, Refresh: s.read(ctx, RefreshKey)}, true
}

func (s *RedisStore) Refresh(ctx context.Context) (string, bool) {
	r := s.read(ctx, RefreshKey)
	return r, r != ""
}

func (s *RedisStore) Present(ctx context.Context) bool {
	return s.read(ctx, AccessKey) != ""
}

func (s *RedisStore) Set(ctx context.Context, access, refresh string) {
	if s.rdb == nil {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(AccessKey), access, s.ttl)
		if refresh != "" {
			p.Set(ctx, s.key(RefreshKey), refresh, s.ttl)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("store.redis.set_failed", zap.Error(err))
	}
}

func (s *RedisStore) Clear(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, s.key(AccessKey), s.key(RefreshKey), s.key(UserKey)).Err(); err != nil {
		s.logger.Warn("store.redis.clear_failed", zap.Error(err))
	}
}

func (s *RedisStore) User(ctx context.Context) (*model.UserIdentity, bool) {
	raw := s.read(ctx, UserKey)
	if raw == "" {
		return nil, false
	}
	var u model.UserIdentity
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.logger.Warn("store.redis.user_decode_failed", zap.Error(err))
		return nil, false
	}
	return &u, true
}

func (s *RedisStore) SetUser(ctx context.Context, user model.UserIdentity) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, s.key(UserKey), data, s.ttl).Err(); err != nil {
		s.logger.Warn("store.redis.set_user_failed", zap.Error(err))
	}
}
