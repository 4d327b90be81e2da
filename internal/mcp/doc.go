// Package mcp implements the Model Context Protocol (MCP) server for the
// question-answering agent.
//
// The MCP server exposes three tools to AI assistants:
//   - ask_question: answer from the collection with citations, or ask for clarification
//   - retrieve_passages: ranked passages and the confidence gate decision, no generation
//   - get_status: collection size, models, thresholds, cache and metrics summary
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only. Logs go to stderr.
//
// # Tool: ask_question
//
//	Request:
//	{
//	  "name": "ask_question",
//	  "arguments": {"query": "What is the capital of France?", "k": 3}
//	}
//
//	Response:
//	{
//	  "turn_id": "5f0c...",
//	  "answer": "Paris is the capital of France. [doc1#0]",
//	  "answered": true,
//	  "gate": {"vague_query": false, "threshold": 0.25, "top_score": 0.83, "answer": true},
//	  "sources": [{"rank": 1, "ref": "doc1#0", "score": 0.83, "source": "data/doc1.txt"}]
//	}
//
// The server keeps one conversation, so follow-up questions ("what about
// his ...") see the previous answered turns.
//
// # Tool: retrieve_passages
//
// Same arguments as ask_question. Returns passages with their text and the
// gate decision. Nothing is recorded in the metrics log.
//
// # Error Handling
//
// Errors are MCPError values:
//   - -32602: Invalid params (k out of range, malformed arguments)
//   - -32603: Internal error
//   - -32004: Empty query
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "rag": {
//	      "command": "/usr/local/bin/rag-mcp",
//	      "env": {"NVIDIA_API_KEY": "nvapi-..."}
//	    }
//	  }
//	}
package mcp
