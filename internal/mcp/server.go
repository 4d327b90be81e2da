package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/gorag/internal/agent"
	"github.com/dshills/gorag/internal/evaluator"
	"github.com/dshills/gorag/internal/vectorcache"
)

const (
	// ServerName is the MCP server name
	ServerName = "rag-mcp"
	// MaxK is the largest k a tool accepts
	MaxK = 50
)

// Options configures a Server.
type Options struct {
	Version  string
	DefaultK int
	Recorder *evaluator.Recorder // optional, adds metrics to get_status
	Cache    *vectorcache.Cache  // optional, adds cache activity to get_status
	Logger   *zap.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	agent    *agent.Agent
	conv     *agent.Conversation
	recorder *evaluator.Recorder
	cache    *vectorcache.Cache
	defaultK int
	logger   *zap.Logger
}

// NewServer creates a new MCP server instance. A stdio server has a single
// client, so ask_question keeps one conversation for the server's lifetime.
func NewServer(a *agent.Agent, opts Options) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("mcp server requires an agent")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultK < 1 || opts.DefaultK > MaxK {
		opts.DefaultK = 3
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, opts.Version),
		agent:    a,
		conv:     agent.NewConversation(),
		recorder: opts.Recorder,
		cache:    opts.Cache,
		defaultK: opts.DefaultK,
		logger:   opts.Logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio",
		zap.Int("chunks", s.agent.Collection().Len()))
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(askQuestionTool(), s.handleAskQuestion)
	s.mcp.AddTool(retrievePassagesTool(), s.handleRetrievePassages)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
