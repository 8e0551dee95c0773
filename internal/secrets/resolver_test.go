package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scp-platform/supplier-console/pkg/cache"
	"github.com/scp-platform/supplier-console/pkg/config"
)

type fakeProvider struct {
	secret map[string]string
	err    error
	names  []string
}

func (f *fakeProvider) GetSecret(_ context.Context, name string) (map[string]string, error) {
	f.names = append(f.names, name)
	return f.secret, f.err
}

func TestResolver_ResolveCachesSettings(t *testing.T) {
	p := &fakeProvider{secret: map[string]string{
		KeyAPIBaseURL:       " https://api.test/api/v1/ ",
		KeyRedisPass:        "pw",
		KeyAuditDatabaseURL: "postgres://console:secret@db:5432/audit",
		"unrelated":         "ignored",
	}}
	r := NewResolver(nil, "Prod", p, cache.New[Settings](time.Minute))

	s, err := r.Resolve(context.Background(), "Supplier-Console")
	require.NoError(t, err)
	assert.Equal(t, "https://api.test/api/v1", s.APIBaseURL)
	assert.Equal(t, "pw", s.RedisPass)
	assert.Equal(t, "postgres://console:secret@db:5432/audit", s.AuditDatabaseURL)

	_, err = r.Resolve(context.Background(), "Supplier-Console")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod/supplier-console"}, p.names, "second call served from cache")
}

func TestResolver_FullSecretNameIsUsedAsIs(t *testing.T) {
	p := &fakeProvider{secret: map[string]string{}}
	r := NewResolver(nil, "prod", p, cache.New[Settings](time.Minute))

	_, err := r.Resolve(context.Background(), "shared/Console")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared/Console"}, p.names)
}

func TestResolver_ProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("access denied")}
	r := NewResolver(nil, "prod", p, cache.New[Settings](time.Minute))

	_, err := r.Resolve(context.Background(), "console")
	require.Error(t, err)
	assert.ErrorContains(t, err, "access denied")

	_, err = r.Resolve(context.Background(), "console")
	require.Error(t, err)
	assert.Len(t, p.names, 2, "failures are not cached")
}

func TestSettings_ApplyOverridesOnlySetValues(t *testing.T) {
	cfg := &config.Config{
		APIBaseURL:       "http://localhost:8080/api/v1",
		RedisPass:        "local",
		AuditDatabaseURL: "",
	}
	Settings{AuditDatabaseURL: "postgres://db/audit"}.Apply(cfg)

	assert.Equal(t, "http://localhost:8080/api/v1", cfg.APIBaseURL)
	assert.Equal(t, "local", cfg.RedisPass)
	assert.Equal(t, "postgres://db/audit", cfg.AuditDatabaseURL)
}
