package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/gorag/internal/evaluator"
	"github.com/dshills/gorag/internal/gate"
	"github.com/dshills/gorag/internal/searcher"
	"github.com/dshills/gorag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// statusTailSize is how many recent records get_status summarizes.
const statusTailSize = 100

// handleAskQuestion handles the ask_question tool invocation
func (s *Server) handleAskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, k, err := s.queryArgs(request)
	if err != nil {
		return nil, err
	}

	turn, err := s.agent.Ask(ctx, query, k, s.conv)
	if err != nil {
		return nil, s.toolError(err)
	}

	response := map[string]interface{}{
		"turn_id":  turn.ID.String(),
		"query":    turn.Query,
		"answer":   turn.Answer,
		"answered": turn.Answered,
		"gate":     decisionJSON(turn.Decision),
		"sources":  resultsJSON(turn.Results, false),
	}
	if turn.Err != nil {
		response["error"] = turn.Err.Error()
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRetrievePassages handles the retrieve_passages tool invocation
func (s *Server) handleRetrievePassages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, k, err := s.queryArgs(request)
	if err != nil {
		return nil, err
	}

	results, decision, err := s.agent.Retrieve(ctx, query, k)
	if err != nil {
		return nil, s.toolError(err)
	}

	response := map[string]interface{}{
		"query":    query,
		"k":        k,
		"gate":     decisionJSON(decision),
		"passages": resultsJSON(results, true),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	col := s.agent.Collection()
	g := s.agent.Gate()

	genModel := ""
	if gen := s.agent.Generator(); gen != nil {
		genModel = gen.Model()
	}

	response := map[string]interface{}{
		"indexed": col.Len() > 0,
		"collection": map[string]interface{}{
			"chunks":      col.Len(),
			"embed_model": col.Model,
		},
		"gen_model": genModel,
		"gate": map[string]interface{}{
			"confident_score":       g.Base(),
			"confident_score_vague": g.Vague(),
		},
		"default_k": s.defaultK,
	}

	if s.cache != nil {
		stats := s.cache.Stats()
		entries, err := s.cache.Entries(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to list cache entries", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["cache"] = map[string]interface{}{
			"entries": len(entries),
			"hits":    stats.Hits,
			"misses":  stats.Misses,
			"builds":  stats.Builds,
			"corrupt": stats.Corrupt,
		}
	}

	if s.recorder != nil {
		recent, total, err := s.recorder.Tail(statusTailSize)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to read metrics", map[string]interface{}{
				"error": err.Error(),
			})
		}
		summary := evaluator.Summarize(recent)
		response["metrics"] = map[string]interface{}{
			"path":           s.recorder.Path(),
			"total_records":  total,
			"recent":         summary.Total,
			"answered_rate":  summary.AnsweredRate,
			"error_rate":     summary.ErrorRate,
			"citation_rate":  summary.CitationRate,
			"vague_rate":     summary.VagueRate,
			"mean_top_score": summary.MeanTopScore,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// queryArgs extracts and validates the query and k arguments.
func (s *Server) queryArgs(request mcp.CallToolRequest) (string, int, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", 0, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return "", 0, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	k := getIntDefault(args, "k", s.defaultK)
	if k < 1 || k > MaxK {
		return "", 0, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("k must be between 1 and %d", MaxK), map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}
	return query, k, nil
}

// toolError maps agent errors onto MCP errors.
func (s *Server) toolError(err error) error {
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, err.Error(), nil)
	case errors.Is(err, searcher.ErrInvalidK):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{"param": "k"})
	default:
		s.logger.Error("tool call failed", zap.Error(err))
		return newMCPError(ErrorCodeInternalError, "request failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func decisionJSON(d gate.Decision) map[string]interface{} {
	return map[string]interface{}{
		"vague_query": d.Vague,
		"threshold":   d.Threshold,
		"top_score":   d.TopScore,
		"answer":      d.Answer,
	}
}

func resultsJSON(results []types.RetrievalResult, withText bool) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		m := map[string]interface{}{
			"rank":   i + 1,
			"ref":    r.Ref(),
			"score":  r.Score,
			"source": r.Source,
		}
		if withText {
			m["text"] = r.Text
		}
		out[i] = m
	}
	return out
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
