package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxRESTResponseSize caps how much of a store response is read (4MB covers
// the full stock snapshot with a wide margin).
const maxRESTResponseSize = 4 * 1024 * 1024

// RESTStore implements Store against the hosted key-value store's REST face:
//
//	GET  /get/:key
//	POST /setex/:key/:ttl        (value in the request body)
//	POST /                       (raw command, used for SET key value NX EX ttl)
//	POST /del/:key
//
// Every response is a JSON envelope {"result": ...} and all values are
// JSON-encoded strings.
type RESTStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// restResult is the store's response envelope.
type restResult struct {
	Result *json.RawMessage `json:"result"`
	Error  string           `json:"error"`
}

// NewRESTStore creates a REST-backed store client.
func NewRESTStore(baseURL, token string, timeout time.Duration) *RESTStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Get returns the value stored under key, or ErrNotFound.
func (s *RESTStore) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := s.do(ctx, http.MethodGet, "/get/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, err
	}
	if res.Result == nil || string(*res.Result) == "null" {
		return nil, ErrNotFound
	}

	// Values come back JSON-encoded ("\"...\"")
	var value string
	if err := json.Unmarshal(*res.Result, &value); err != nil {
		return nil, fmt.Errorf("kvstore: rest get %q: malformed result: %w", key, err)
	}
	return []byte(value), nil
}

// SetWithTTL stores value under key with the given expiry.
func (s *RESTStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	path := fmt.Sprintf("/setex/%s/%d", url.PathEscape(key), int(ttl.Seconds()))
	if _, err := s.do(ctx, http.MethodPost, path, value); err != nil {
		return err
	}
	return nil
}

// SetIfNotExists issues a raw SET key value NX EX ttl command, returning
// whether the store accepted the write.
func (s *RESTStore) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	command := []any{"SET", key, string(value), "NX", "EX", int(ttl.Seconds())}
	body, err := json.Marshal(command)
	if err != nil {
		return false, fmt.Errorf("kvstore: rest setnx %q: %w", key, err)
	}

	res, err := s.do(ctx, http.MethodPost, "/", body)
	if err != nil {
		return false, err
	}

	// SET ... NX answers "OK" when written and null when the key already exists.
	return res.Result != nil && string(*res.Result) != "null", nil
}

// Delete removes key.
func (s *RESTStore) Delete(ctx context.Context, key string) error {
	if _, err := s.do(ctx, http.MethodPost, "/del/"+url.PathEscape(key), nil); err != nil {
		return err
	}
	return nil
}

// do performs one request against the store and decodes the envelope.
func (s *RESTStore) do(ctx context.Context, method, path string, body []byte) (*restResult, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("kvstore: rest request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kvstore: rest %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRESTResponseSize))
	if err != nil {
		return nil, fmt.Errorf("kvstore: rest read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("kvstore: rest %s %s: HTTP %d", method, path, resp.StatusCode)
	}

	var res restResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("kvstore: rest malformed envelope: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("kvstore: rest store error: %s", res.Error)
	}
	return &res, nil
}

// Ensure RESTStore implements Store
var _ Store = (*RESTStore)(nil)
