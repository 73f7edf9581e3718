package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/infrastructure/kvstore"
)

const (
	tokenCacheKey       = "erp:oauth:token"
	tokenDebounceKey    = "erp:oauth:refresh_attempt"
	maxTokenBodySize    = 64 * 1024
	debouncePollSteps   = 3
	refreshRateLimitMsg = "too many requests"
)

// cachedToken is the shape stored in memory and in the shared cache.
type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// valid reports whether the token can still be used at the given instant,
// keeping the safety margin clear of the real expiry.
func (t *cachedToken) valid(now time.Time, margin time.Duration) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-margin))
}

// TokenProvider acquires and shares the upstream OAuth token. Lookup order is
// process memory, then the shared cache, then a debounced refresh-token grant
// against the identity endpoint. The memory memo is injected state on the
// provider, never a package global, and it is only a speed optimization:
// correctness always falls back to the shared cache.
type TokenProvider struct {
	cfg        Config
	cache      *kvstore.BestEffort
	httpClient *http.Client
	logger     *zap.Logger

	mu   sync.Mutex
	memo *cachedToken

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTokenProvider creates a token provider backed by the shared cache.
func NewTokenProvider(cfg Config, cache *kvstore.BestEffort, logger *zap.Logger) *TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenProvider{
		cfg:        cfg,
		cache:      cache,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Token returns an access token that is guaranteed valid past the safety
// margin. Concurrent in-process callers serialize here, so one refresh feeds
// all of them.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.memo.valid(now, p.cfg.TokenSafetyMargin) {
		return p.memo.AccessToken, nil
	}

	if tok := p.fromSharedCache(ctx); tok.valid(now, p.cfg.TokenSafetyMargin) {
		p.memo = tok
		return tok.AccessToken, nil
	}

	tok, err := p.refresh(ctx)
	if err != nil {
		return "", err
	}
	p.memo = tok
	return tok.AccessToken, nil
}

// fromSharedCache reads the cross-instance token copy; a miss or a decode
// failure just means refresh.
func (p *TokenProvider) fromSharedCache(ctx context.Context) *cachedToken {
	raw := p.cache.Get(ctx, tokenCacheKey)
	if raw == nil {
		return nil
	}
	var tok cachedToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		p.logger.Warn("discarding malformed cached token", zap.Error(err))
		return nil
	}
	return &tok
}

// refresh obtains a new token, debounced across instances so a stampede of
// concurrent cache misses cannot storm the identity provider.
func (p *TokenProvider) refresh(ctx context.Context) (*cachedToken, error) {
	stamp := []byte(p.now().UTC().Format(time.RFC3339))
	if !p.cache.SetIfNotExists(ctx, tokenDebounceKey, stamp, p.cfg.RefreshDebounce) {
		// Another instance is refreshing. Poll the shared cache for its
		// result instead of issuing a second grant.
		step := p.cfg.RefreshDebounce / debouncePollSteps
		for i := 0; i < debouncePollSteps; i++ {
			if err := p.sleep(ctx, step); err != nil {
				return nil, err
			}
			if tok := p.fromSharedCache(ctx); tok.valid(p.now(), p.cfg.TokenSafetyMargin) {
				return tok, nil
			}
		}
		return nil, fmt.Errorf("%w: token refresh debounced and no shared token appeared", commerce.ErrRateLimited)
	}

	tok, err := p.requestToken(ctx)
	if err != nil {
		return nil, err
	}

	ttl := time.Until(tok.ExpiresAt) - p.cfg.TokenSafetyMargin
	if ttl > 0 {
		raw, marshalErr := json.Marshal(tok)
		if marshalErr == nil {
			p.cache.SetWithTTL(ctx, tokenCacheKey, raw, ttl)
		}
	}
	return tok, nil
}

// requestToken performs the refresh-token grant. A rate-limit answer gets one
// fixed-backoff retry, then fails hard.
func (p *TokenProvider) requestToken(ctx context.Context) (*cachedToken, error) {
	tok, err := p.requestTokenOnce(ctx)
	if err == nil {
		return tok, nil
	}
	if !isRateLimitErr(err) {
		return nil, err
	}

	p.logger.Warn("identity endpoint throttled token refresh, retrying once",
		zap.Duration("delay", DefaultRefreshRetryDelay))
	if sleepErr := p.sleep(ctx, DefaultRefreshRetryDelay); sleepErr != nil {
		return nil, sleepErr
	}
	return p.requestTokenOnce(ctx)
}

func (p *TokenProvider) requestTokenOnce(ctx context.Context) (*cachedToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", p.cfg.RefreshToken)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("erp: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: identity endpoint: %v", commerce.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read token response: %v", commerce.ErrUpstreamUnavailable, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: malformed token response: %v", commerce.ErrInvalidResponse, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: identity endpoint HTTP 429", commerce.ErrRateLimited)
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(tr.Error), refreshRateLimitMsg):
		return nil, fmt.Errorf("%w: identity endpoint: %s", commerce.ErrRateLimited, tr.Error)
	case resp.StatusCode >= 400 || tr.Error != "":
		return nil, fmt.Errorf("%w: HTTP %d %s", commerce.ErrAuthFailed, resp.StatusCode, tr.Error)
	case tr.AccessToken == "":
		return nil, fmt.Errorf("%w: token response missing access_token", commerce.ErrInvalidResponse)
	}

	return &cachedToken{
		AccessToken: tr.AccessToken,
		ExpiresAt:   p.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// Invalidate drops the in-memory memo, forcing the next call through the
// shared cache. Used when an upstream call reports an expired token.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memo = nil
}
