package memory

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/51302890/mcp-mem0/internal/mem0"
)

const (
	// DefaultUserID is the fixed identity all memories belong to. The
	// service is single-tenant; callers cannot supply their own.
	DefaultUserID = "user"

	// DefaultSearchLimit is the number of results returned when the
	// caller doesn't ask for a specific amount.
	DefaultSearchLimit = 3

	// DefaultMinScore is the similarity threshold below which results
	// are dropped.
	DefaultMinScore = 0.5

	// saveEchoLimit caps the echoed text in save acknowledgements.
	saveEchoLimit = 100
)

// Client is the slice of the memory service the operations need.
type Client interface {
	Add(ctx context.Context, messages []mem0.Message, userID string) (any, error)
	GetAll(ctx context.Context, userID string) (any, error)
	Search(ctx context.Context, query, userID string, limit int) (any, error)
}

// Service implements the memory operations on top of a shared service
// client. It holds no mutable state of its own, so a single Service is
// safe for concurrent use. Every operation returns a string: failures are
// converted into descriptive messages, never surfaced as errors.
type Service struct {
	client Client
	userID string
	logger *slog.Logger
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Client Client
	UserID string
	Logger *slog.Logger
}

// NewService creates a new memory Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.UserID == "" {
		cfg.UserID = DefaultUserID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		client: cfg.Client,
		userID: cfg.UserID,
		logger: cfg.Logger,
	}
}

// SaveMemory stores text as a long-term memory and reports the outcome.
func (s *Service) SaveMemory(ctx context.Context, text string) string {
	s.logger.Debug("saving memory", "chars", len(text))

	messages := []mem0.Message{{Role: "user", Content: text}}
	result, err := s.client.Add(ctx, messages, s.userID)
	if err != nil {
		s.logger.Warn("save failed", "error", err)
		return "Error saving memory: " + err.Error()
	}
	if result == nil {
		return "Failed to save memory: no result returned"
	}

	if cleaned := Normalize(result); cleaned != "" {
		return cleaned
	}
	return "Successfully saved memory: " + truncate(text, saveEchoLimit)
}

// ListMemories returns every stored memory as indented JSON text.
func (s *Service) ListMemories(ctx context.Context) string {
	raw, err := s.client.GetAll(ctx, s.userID)
	if err != nil {
		s.logger.Warn("list failed", "error", err)
		return "Error retrieving memories: " + err.Error()
	}

	flattened := raw
	if m, ok := raw.(map[string]any); ok {
		if results, ok := m["results"].([]any); ok {
			memories := make([]any, 0, len(results))
			for _, r := range results {
				if rec, ok := r.(map[string]any); ok {
					memories = append(memories, rec["memory"])
				}
			}
			flattened = memories
		}
	}

	data, err := json.MarshalIndent(flattened, "", "  ")
	if err != nil {
		return "Error retrieving memories: " + err.Error()
	}
	return string(data)
}

// SearchMemories performs a semantic search and formats the results.
// Zero values for limit and minScore select the defaults.
func (s *Service) SearchMemories(ctx context.Context, query string, limit int, minScore float64) string {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	processed := PreprocessQuery(query)
	s.logger.Debug("searching memories", "query", processed, "limit", limit, "min_score", minScore)

	// Ask for twice the caller's limit so score filtering has spares to
	// draw from.
	raw, err := s.client.Search(ctx, processed, s.userID, limit*2)
	if err != nil {
		s.logger.Warn("search failed", "error", err)
		return "Error searching memories: " + err.Error()
	}

	return RankAndFormat(raw, limit, minScore)
}

// truncate shortens s to max characters, adding "..." if truncated.
// Cutting on runes rather than bytes keeps multi-byte text valid.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
