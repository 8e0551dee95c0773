package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/pkg/cache"
	"github.com/scp-platform/supplier-console/pkg/config"
	pkgsecrets "github.com/scp-platform/supplier-console/pkg/secrets"
	"github.com/scp-platform/supplier-console/pkg/utils"
)

// Secret keys the console understands. Anything else in the secret is ignored.
const (
	KeyAPIBaseURL       = "api_base_url"
	KeyRedisPass        = "redis_pass"
	KeyAuditDatabaseURL = "audit_database_url"
)

// Settings are the console values that may live in Secrets Manager.
type Settings struct {
	APIBaseURL       string
	RedisPass        string
	AuditDatabaseURL string
}

// Resolver loads console Settings from Secrets Manager, caching the parsed
// result locally to reduce API calls.
//
// Secret naming convention: {env}/{secretID}, unless secretID already
// contains a slash.
type Resolver struct {
	logger   *zap.Logger
	env      string
	provider pkgsecrets.Provider
	cache    *cache.Cache[Settings]
}

func NewResolver(logger *zap.Logger, env string, provider pkgsecrets.Provider, c *cache.Cache[Settings]) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:   logger,
		env:      env,
		provider: provider,
		cache:    c,
	}
}

func (r *Resolver) secretName(secretID string) string {
	if strings.Contains(secretID, "/") {
		return secretID
	}
	return strings.ToLower(fmt.Sprintf("%s/%s", r.env, secretID))
}

// Resolve fetches or returns the cached Settings for secretID.
func (r *Resolver) Resolve(ctx context.Context, secretID string) (Settings, error) {
	name := r.secretName(secretID)

	if s, ok := r.cache.Get(name); ok {
		return s, nil
	}

	raw, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", name),
			zap.Error(err))
		return Settings{}, fmt.Errorf("resolve console settings %q: %w", name, err)
	}

	s := Settings{
		APIBaseURL:       strings.TrimRight(strings.TrimSpace(raw[KeyAPIBaseURL]), "/"),
		RedisPass:        raw[KeyRedisPass],
		AuditDatabaseURL: strings.TrimSpace(raw[KeyAuditDatabaseURL]),
	}
	r.cache.Put(name, s)

	r.logger.Info("aws.console_settings_resolved",
		zap.String("key", name),
		zap.Bool("api_base_url", s.APIBaseURL != ""),
		zap.Bool("redis_pass", s.RedisPass != ""),
		zap.String("audit_database_url", utils.MaskDSN(s.AuditDatabaseURL)))
	return s, nil
}

// Apply overlays the non-empty settings onto cfg.
func (s Settings) Apply(cfg *config.Config) {
	if s.APIBaseURL != "" {
		cfg.APIBaseURL = s.APIBaseURL
	}
	if s.RedisPass != "" {
		cfg.RedisPass = s.RedisPass
	}
	if s.AuditDatabaseURL != "" {
		cfg.AuditDatabaseURL = s.AuditDatabaseURL
	}
}
