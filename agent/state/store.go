package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrNilState           = errors.New("conversation state is nil")
	ErrInvalidThread      = errors.New("thread id is empty")
)

const (
	defaultStoreKeyPrefix = "stockdesk:checkpoint:"
	defaultStoreTTL       = 7 * 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

// Checkpointer persists ConversationState per thread id. Load returns
// ErrCheckpointNotFound for a thread that has never been saved.
type Checkpointer interface {
	Load(ctx context.Context, threadID string) (*contractx.ConversationState, error)
	Save(ctx context.Context, threadID string, st *contractx.ConversationState) error
	Delete(ctx context.Context, threadID string) error
}

// MemoryCheckpointer keeps checkpoints for the life of the process.
type MemoryCheckpointer struct {
	mu     sync.RWMutex
	states map[string]*contractx.ConversationState
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{states: make(map[string]*contractx.ConversationState)}
}

func (m *MemoryCheckpointer) Load(_ context.Context, threadID string) (*contractx.ConversationState, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[threadID]
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryCheckpointer) Save(_ context.Context, threadID string, st *contractx.ConversationState) error {
	if st == nil {
		return ErrNilState
	}
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[threadID] = st.Clone()
	return nil
}

func (m *MemoryCheckpointer) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, threadID)
	return nil
}

// StoreOption customizes UpstashCheckpointer.
type StoreOption func(*UpstashCheckpointer)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashCheckpointer) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashCheckpointer) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashCheckpointer) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashCheckpointer persists checkpoints in Upstash Redis via its REST API.
type UpstashCheckpointer struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashCheckpointer(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashCheckpointer, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashCheckpointer{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultStoreKeyPrefix,
		ttl:        defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashCheckpointer) Load(ctx context.Context, threadID string) (*contractx.ConversationState, error) {
	key, err := s.redisKey(threadID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrCheckpointNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode checkpoint payload: %w", err)
	}

	var st contractx.ConversationState
	if err := json.Unmarshal([]byte(encoded), &st); err != nil {
		return nil, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	return &st, nil
}

func (s *UpstashCheckpointer) Save(ctx context.Context, threadID string, st *contractx.ConversationState) error {
	if st == nil {
		return ErrNilState
	}
	key, err := s.redisKey(threadID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal conversation state: %w", err)
	}

	cmd := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}
	_, err = s.exec(ctx, cmd)
	return err
}

func (s *UpstashCheckpointer) Delete(ctx context.Context, threadID string) error {
	key, err := s.redisKey(threadID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key})
	return err
}

func (s *UpstashCheckpointer) redisKey(threadID string) (string, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", ErrInvalidThread
	}
	prefix := strings.TrimSpace(s.keyPrefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix + threadID, nil
}

func (s *UpstashCheckpointer) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
