// Package agent runs question-answering turns over an embedded collection.
//
// A turn goes through these steps:
//
//	query ─► searcher.Retrieve ─► gate.Decide ─┬─► ClarifyMessage
//	                                           └─► prompt.Build + history ─► generator
//	                                                        │
//	                              evaluator.Evaluate ─► Recorder.Append
//
// Every completed turn is recorded, including turns whose retrieval or
// generation failed. Those carry an "ERROR: ..." answer so they show up in
// the metrics log like any other turn.
//
// Conversation memory is per session and only grows on successful answers.
package agent
