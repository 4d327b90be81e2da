// Package httpapi serves the question-answering agent over HTTP.
//
//	GET  /        service info
//	GET  /health  collection size and model names
//	POST /ask     {"query": "...", "k": 3}
//
// Errors are JSON ErrorResponse bodies. Validation failures carry one
// message per invalid field in details.
package httpapi
