package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func kProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Number of passages to retrieve (1-50)",
		"minimum":     1,
		"maximum":     MaxK,
	}
}

// askQuestionTool returns the tool definition for ask_question
func askQuestionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question from the document collection with cited sources, or ask for clarification when retrieval is weak",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language question",
				},
				"k": kProperty(),
			},
			Required: []string{"query"},
		},
	}
}

// retrievePassagesTool returns the tool definition for retrieve_passages
func retrievePassagesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_passages",
		Description: "Rank document passages by similarity to a query without generating an answer. Includes the confidence gate decision.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"k": kProperty(),
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report collection size, models, gate thresholds and recent answer quality",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
