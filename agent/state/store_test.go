package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

func sampleState() *contractx.ConversationState {
	return &contractx.ConversationState{
		Messages: []contractx.Message{
			contractx.UserMessage("what is a limit order?"),
			contractx.SpecialistMessage(contractx.AgentFAQ, "A limit order sets the worst price you accept."),
		},
		Next:     contractx.RouteFinish,
		Response: "A limit order sets the worst price you accept.",
	}
}

func newRecordingServer(t *testing.T, reply string, got *[]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("Authorization = %q, want Bearer token", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, reply)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMemoryCheckpointerIsolatesCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cp := NewMemoryCheckpointer()

	if _, err := cp.Load(ctx, "t1"); !errors.Is(err, ErrCheckpointNotFound) {
		t.Fatalf("Load() error = %v, want ErrCheckpointNotFound", err)
	}

	st := sampleState()
	if err := cp.Save(ctx, "t1", st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	st.Messages = append(st.Messages, contractx.UserMessage("mutated"))

	loaded, err := cp.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("Load() messages = %d, want 2", len(loaded.Messages))
	}
	loaded.Messages[0].Content = "changed"

	again, _ := cp.Load(ctx, "t1")
	if again.Messages[0].Content != "what is a limit order?" {
		t.Fatalf("checkpoint mutated through loaded copy: %q", again.Messages[0].Content)
	}
}

func TestMemoryCheckpointerRejectsEmptyThread(t *testing.T) {
	t.Parallel()

	cp := NewMemoryCheckpointer()
	if err := cp.Save(context.Background(), " ", sampleState()); !errors.Is(err, ErrInvalidThread) {
		t.Fatalf("Save() error = %v, want ErrInvalidThread", err)
	}
	if err := cp.Save(context.Background(), "t", nil); !errors.Is(err, ErrNilState) {
		t.Fatalf("Save() error = %v, want ErrNilState", err)
	}
}

func TestUpstashCheckpointerRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashCheckpointer{}
	got, err := store.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "stockdesk:checkpoint:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "stockdesk:checkpoint:abc")
	}

	if _, err := store.redisKey("   "); !errors.Is(err, ErrInvalidThread) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidThread", err)
	}
}

func TestUpstashCheckpointerSave(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := newRecordingServer(t, `{"result":"OK"}`, &gotCommand)

	store, err := NewUpstashCheckpointer(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithKeyPrefix("cp:"),
		WithTTL(90*time.Second),
	)
	if err != nil {
		t.Fatalf("NewUpstashCheckpointer() error = %v", err)
	}

	if err := store.Save(context.Background(), "thread-1", sampleState()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(gotCommand) != 5 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "SET" || gotCommand[1] != "cp:thread-1" {
		t.Fatalf("command = %v %v, want SET cp:thread-1", gotCommand[0], gotCommand[1])
	}
	if gotCommand[3] != "EX" || gotCommand[4] != float64(90) {
		t.Fatalf("ttl args = %v %v, want EX 90", gotCommand[3], gotCommand[4])
	}
}

func TestUpstashCheckpointerLoad(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(sampleState())
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	server := newRecordingServer(t, fmt.Sprintf(`{"result":%s}`, encoded), &gotCommand)

	store, err := NewUpstashCheckpointer(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashCheckpointer() error = %v", err)
	}

	st, err := store.Load(context.Background(), "thread-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(st.Messages) != 2 || st.Messages[1].Agent != contractx.AgentFAQ {
		t.Fatalf("Load() messages = %#v", st.Messages)
	}
	if st.Messages[1].Provenance != contractx.ProvenanceSpecialist {
		t.Fatalf("Load() provenance = %v, want specialist", st.Messages[1].Provenance)
	}
	if gotCommand[0] != "GET" || gotCommand[1] != "stockdesk:checkpoint:thread-2" {
		t.Fatalf("command = %#v", gotCommand)
	}
}

func TestUpstashCheckpointerLoadMissing(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := newRecordingServer(t, `{"result":null}`, &gotCommand)

	store, err := NewUpstashCheckpointer(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashCheckpointer() error = %v", err)
	}

	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrCheckpointNotFound) {
		t.Fatalf("Load() error = %v, want ErrCheckpointNotFound", err)
	}
}

func TestUpstashCheckpointerDelete(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := newRecordingServer(t, `{"result":1}`, &gotCommand)

	store, err := NewUpstashCheckpointer(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashCheckpointer() error = %v", err)
	}

	if err := store.Delete(context.Background(), "thread-3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if gotCommand[0] != "DEL" || gotCommand[1] != "stockdesk:checkpoint:thread-3" {
		t.Fatalf("command = %#v", gotCommand)
	}
}

func TestUpstashCheckpointerSurfacesRedisError(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := newRecordingServer(t, `{"error":"WRONGTYPE"}`, &gotCommand)

	store, err := NewUpstashCheckpointer(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashCheckpointer() error = %v", err)
	}
	if _, err := store.Load(context.Background(), "t"); err == nil || err.Error() != "WRONGTYPE" {
		t.Fatalf("Load() error = %v, want WRONGTYPE", err)
	}
}
