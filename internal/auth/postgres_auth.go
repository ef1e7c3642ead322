package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ClientStore abstracts DB queries for testability.
type ClientStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*clientRow, error)
}

type clientRow struct {
	ClientID   string
	APIKeyHash string
	FailOpen   bool
}

// sqlClientStore is the real implementation using *sql.DB.
type sqlClientStore struct {
	db *sql.DB
}

func (s *sqlClientStore) LookupByPrefix(ctx context.Context, prefix string) (*clientRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, api_key_hash, fail_open
		FROM api_clients
		WHERE api_key_prefix = $1
	`, prefix)

	var r clientRow
	if err := row.Scan(&r.ClientID, &r.APIKeyHash, &r.FailOpen); err != nil {
		return nil, err
	}
	return &r, nil
}

// PostgresAuthenticator validates API keys against the api_clients table.
type PostgresAuthenticator struct {
	store    ClientStore
	cache    *credCache
	logger   *zap.Logger
	failOpen bool
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	FailOpen bool
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new PostgresAuthenticator.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:    &sqlClientStore{db: cfg.DB},
		cache:    newCredCache(ttl),
		logger:   cfg.Logger,
		failOpen: cfg.FailOpen,
	}
}

// NewPostgresAuthenticatorWithStore creates an authenticator with a custom store (for testing).
func NewPostgresAuthenticatorWithStore(store ClientStore, cacheTTL time.Duration, failOpen bool, logger *zap.Logger) *PostgresAuthenticator {
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:    store,
		cache:    newCredCache(cacheTTL),
		logger:   logger,
		failOpen: failOpen,
	}
}

// keyPrefixLen is how many leading key characters the api_clients
// table indexes; the full key is only ever compared against the bcrypt
// hash of the matched row.
const keyPrefixLen = 8

func (a *PostgresAuthenticator) Authenticate(ctx context.Context, apiKey string) (*ClientContext, error) {
	if client, hit, stale := a.cache.get(apiKey); hit {
		if stale {
			go a.refreshInBackground(apiKey)
		}
		return client, nil
	}

	client, err := a.resolveKey(ctx, apiKey)
	if err != nil {
		if a.failOpen {
			a.logger.Warn("credential lookup failed, serving fail-open context",
				zap.Error(err),
			)
			return &ClientContext{
				ClientID: "unknown",
				FailOpen: true,
			}, nil
		}
		return nil, fmt.Errorf("authenticate key: %w", err)
	}

	a.cache.put(apiKey, client)
	return client, nil
}

func (a *PostgresAuthenticator) resolveKey(ctx context.Context, apiKey string) (*ClientContext, error) {
	if len(apiKey) < keyPrefixLen {
		return nil, ErrUnauthenticated
	}

	row, err := a.store.LookupByPrefix(ctx, apiKey[:keyPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("lookup key prefix: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrUnauthenticated
	}

	return &ClientContext{
		ClientID: row.ClientID,
		FailOpen: row.FailOpen,
	}, nil
}

func (a *PostgresAuthenticator) refreshInBackground(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := a.resolveKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			// Key revoked since it was cached; stop serving it stale.
			a.cache.drop(apiKey)
			return
		}
		a.logger.Warn("stale credential refresh failed, keeping cached context",
			zap.Error(err),
		)
		return
	}
	a.cache.put(apiKey, client)
}
