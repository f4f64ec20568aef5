package mcp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/51302890/mcp-mem0/internal/mem0"
	"github.com/51302890/mcp-mem0/internal/memory"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubClient struct {
	addFunc    func(ctx context.Context, messages []mem0.Message, userID string) (any, error)
	getAllFunc func(ctx context.Context, userID string) (any, error)
	searchFunc func(ctx context.Context, query, userID string, limit int) (any, error)
}

func (s *stubClient) Add(ctx context.Context, messages []mem0.Message, userID string) (any, error) {
	return s.addFunc(ctx, messages, userID)
}

func (s *stubClient) GetAll(ctx context.Context, userID string) (any, error) {
	return s.getAllFunc(ctx, userID)
}

func (s *stubClient) Search(ctx context.Context, query, userID string, limit int) (any, error) {
	return s.searchFunc(ctx, query, userID, limit)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, client *stubClient) *Server {
	t.Helper()
	service := memory.NewService(memory.ServiceConfig{
		Client: client,
		Logger: testLogger(),
	})
	return NewServer(ServerConfig{
		Service: service,
		Logger:  testLogger(),
	})
}

func textOf(t *testing.T, result *sdkmcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(result.Content))
	}
	tc, ok := result.Content[0].(*sdkmcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func TestSaveMemory_EmptyText(t *testing.T) {
	srv := newTestServer(t, &stubClient{})

	result, _, err := srv.handleSaveMemory(context.Background(), nil, SaveMemoryInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for missing text")
	}
}

func TestSaveMemory_Success(t *testing.T) {
	client := &stubClient{
		addFunc: func(ctx context.Context, messages []mem0.Message, userID string) (any, error) {
			if userID != "user" {
				t.Errorf("expected user_id 'user', got %s", userID)
			}
			return "Memory added", nil
		},
	}
	srv := newTestServer(t, client)

	result, _, err := srv.handleSaveMemory(context.Background(), nil, SaveMemoryInput{Text: "likes coffee"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Error("unexpected IsError")
	}
	if got := textOf(t, result); got != "Memory added" {
		t.Errorf("expected 'Memory added', got %q", got)
	}
}

func TestSaveMemory_ServiceFailureIsNotProtocolError(t *testing.T) {
	client := &stubClient{
		addFunc: func(ctx context.Context, messages []mem0.Message, userID string) (any, error) {
			return nil, mem0.ErrUnavailable
		},
	}
	srv := newTestServer(t, client)

	result, _, err := srv.handleSaveMemory(context.Background(), nil, SaveMemoryInput{Text: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Error("service failures must be reported as text, not protocol errors")
	}
	if got := textOf(t, result); !strings.HasPrefix(got, "Error saving memory: ") {
		t.Errorf("expected error prefix, got %q", got)
	}
}

func TestGetAllMemories(t *testing.T) {
	client := &stubClient{
		getAllFunc: func(ctx context.Context, userID string) (any, error) {
			return map[string]any{"results": []any{
				map[string]any{"memory": "a"},
			}}, nil
		},
	}
	srv := newTestServer(t, client)

	result, _, err := srv.handleGetAllMemories(context.Background(), nil, GetAllMemoriesInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := textOf(t, result), "[\n  \"a\"\n]"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSearchMemories_EmptyQuery(t *testing.T) {
	srv := newTestServer(t, &stubClient{})

	result, _, err := srv.handleSearchMemories(context.Background(), nil, SearchMemoriesInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for missing query")
	}
}

func TestSearchMemories_UsesDefaults(t *testing.T) {
	var gotLimit int
	client := &stubClient{
		searchFunc: func(ctx context.Context, query, userID string, limit int) (any, error) {
			gotLimit = limit
			return map[string]any{"results": []any{
				map[string]any{"memory": "espresso", "score": 0.9},
			}}, nil
		},
	}
	srv := newTestServer(t, client)

	result, _, err := srv.handleSearchMemories(context.Background(), nil, SearchMemoriesInput{Query: "coffee"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Default limit 3, inflated 2x before hitting the client.
	if gotLimit != 6 {
		t.Errorf("expected client limit 6, got %d", gotLimit)
	}
	if got, want := textOf(t, result), "[similarity: 0.90] espresso"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSearchMemories_ExplicitParamsWin(t *testing.T) {
	var gotLimit int
	client := &stubClient{
		searchFunc: func(ctx context.Context, query, userID string, limit int) (any, error) {
			gotLimit = limit
			return map[string]any{"results": []any{
				map[string]any{"memory": "low", "score": 0.3},
			}}, nil
		},
	}
	srv := newTestServer(t, client)

	result, _, err := srv.handleSearchMemories(context.Background(), nil, SearchMemoriesInput{
		Query:    "coffee",
		Limit:    5,
		MinScore: 0.2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != 10 {
		t.Errorf("expected client limit 10, got %d", gotLimit)
	}
	if got, want := textOf(t, result), "[similarity: 0.30] low"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSetSearchDefaults(t *testing.T) {
	var gotLimit int
	client := &stubClient{
		searchFunc: func(ctx context.Context, query, userID string, limit int) (any, error) {
			gotLimit = limit
			return map[string]any{"results": []any{}}, nil
		},
	}
	srv := newTestServer(t, client)

	srv.SetSearchDefaults(7, 0.8)

	if _, _, err := srv.handleSearchMemories(context.Background(), nil, SearchMemoriesInput{Query: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != 14 {
		t.Errorf("expected client limit 14 after reload, got %d", gotLimit)
	}

	// Zero values must not clobber the current defaults.
	srv.SetSearchDefaults(0, 0)
	limit, minScore := srv.searchDefaults()
	if limit != 7 || minScore != 0.8 {
		t.Errorf("expected defaults preserved, got limit=%d minScore=%v", limit, minScore)
	}
}

func TestHandlerHealthz(t *testing.T) {
	srv := newTestServer(t, &stubClient{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %q", rec.Body.String())
	}
}
