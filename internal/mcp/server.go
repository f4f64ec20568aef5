// Package mcp exposes the memory operations as MCP tools using the
// official SDK.
package mcp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/51302890/mcp-mem0/internal/memory"
	"github.com/51302890/mcp-mem0/internal/version"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Input types for tools

// SaveMemoryInput is the input for save_memory.
type SaveMemoryInput struct {
	Text string `json:"text" jsonschema:"The content to store in memory, including any relevant details and context."`
}

// GetAllMemoriesInput is the input for get_all_memories (empty).
type GetAllMemoriesInput struct{}

// SearchMemoriesInput is the input for search_memories.
type SearchMemoriesInput struct {
	Query    string  `json:"query" jsonschema:"Search query describing what you're looking for. Can be natural language."`
	Limit    int     `json:"limit,omitempty" jsonschema:"Maximum number of results to return."`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"Minimum similarity score (0-1) for results to be included."`
}

// Server wraps the official MCP SDK server around the memory service.
type Server struct {
	server  *sdkmcp.Server
	service *memory.Service
	logger  *slog.Logger

	mu              sync.RWMutex
	defaultLimit    int
	defaultMinScore float64
}

// ServerConfig contains configuration for the MCP server.
type ServerConfig struct {
	Service         *memory.Service
	Logger          *slog.Logger
	DefaultLimit    int
	DefaultMinScore float64
}

// NewServer creates a new MCP server exposing the memory tools.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = memory.DefaultSearchLimit
	}
	if cfg.DefaultMinScore <= 0 {
		cfg.DefaultMinScore = memory.DefaultMinScore
	}

	s := &Server{
		service:         cfg.Service,
		logger:          cfg.Logger,
		defaultLimit:    cfg.DefaultLimit,
		defaultMinScore: cfg.DefaultMinScore,
	}

	// Create the MCP server
	s.server = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "mcp-mem0",
		Version: version.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: "mcp-mem0 provides long-term memory storage and retrieval. " +
			"Use save_memory to store any information that might be useful in the future, " +
			"get_all_memories for complete context of everything stored, " +
			"and search_memories to find relevant memories with semantic search.",
	})

	// Register tools using typed handlers
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "save_memory",
		Description: "Save information to your long-term memory. The content will be " +
			"processed and indexed for later retrieval through semantic search.",
	}, s.handleSaveMemory)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "get_all_memories",
		Description: "Get all stored memories for the user. Call this when you need " +
			"complete context of everything previously stored. Returns a JSON list.",
	}, s.handleGetAllMemories)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "search_memories",
		Description: "Search memories using semantic search. Only returns memories with " +
			"a similarity score above the threshold.",
	}, s.handleSearchMemories)

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

// SetSearchDefaults updates the limit and score threshold applied when a
// caller omits them. Used by config hot-reload.
func (s *Server) SetSearchDefaults(limit int, minScore float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > 0 {
		s.defaultLimit = limit
	}
	if minScore > 0 {
		s.defaultMinScore = minScore
	}
}

// searchDefaults returns the current search defaults.
func (s *Server) searchDefaults() (int, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultLimit, s.defaultMinScore
}

// handleSaveMemory handles the save_memory tool.
func (s *Server) handleSaveMemory(ctx context.Context, req *sdkmcp.CallToolRequest, input SaveMemoryInput) (*sdkmcp.CallToolResult, any, error) {
	if input.Text == "" {
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: "Error: 'text' parameter is required."}},
			IsError: true,
		}, nil, nil
	}

	// Service-level failures come back as descriptive text, never as a
	// protocol error.
	result := s.service.SaveMemory(ctx, input.Text)
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: result}},
	}, nil, nil
}

// handleGetAllMemories handles the get_all_memories tool.
func (s *Server) handleGetAllMemories(ctx context.Context, req *sdkmcp.CallToolRequest, input GetAllMemoriesInput) (*sdkmcp.CallToolResult, any, error) {
	result := s.service.ListMemories(ctx)
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: result}},
	}, nil, nil
}

// handleSearchMemories handles the search_memories tool.
func (s *Server) handleSearchMemories(ctx context.Context, req *sdkmcp.CallToolRequest, input SearchMemoriesInput) (*sdkmcp.CallToolResult, any, error) {
	if input.Query == "" {
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: "Error: 'query' parameter is required."}},
			IsError: true,
		}, nil, nil
	}

	limit, minScore := s.searchDefaults()
	if input.Limit > 0 {
		limit = input.Limit
	}
	if input.MinScore > 0 {
		minScore = input.MinScore
	}

	result := s.service.SearchMemories(ctx, input.Query, limit, minScore)
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: result}},
	}, nil, nil
}
