// Package embedder provides text embedding backends for retrieval.
//
// # Overview
//
// All backends implement the Embedder interface:
//
//	vectors, err := emb.Embed(ctx, texts, embedder.ModePassage)
//
// Embed returns exactly one vector per input text, in input order, all of
// one dimension. A backend that cannot honour that contract fails with
// ErrEmbeddingBackend.
//
// # Modes
//
// Retrieval models often embed stored passages and incoming questions
// differently. ModePassage is used when building the chunk matrix,
// ModeQuery for the user's question. Unknown modes fail with ErrInvalidMode.
//
// # Providers
//
//	nvidia   OpenAI-compatible REST endpoint that accepts input_type
//	         (NVIDIA NIM, default model nvidia/nv-embedqa-e5-v5)
//	openai   go-openai client; mode is not transmitted
//	local    hugot feature-extraction pipeline over an ONNX model;
//	         query/passage prefixes realise the mode
//	hashing  offline feature-hashing bag of words, for demos and tests
//
// Create one with New:
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider: "nvidia",
//	    APIKey:   os.Getenv("NVIDIA_API_KEY"),
//	})
//
// # Errors
//
// Errors fall into three groups so callers can tell who has to fix them:
//
//	ErrInvalidInput, ErrInvalidMode     caller passed bad arguments
//	ErrMissingCredentials               configuration, raised by constructors
//	ErrEmbeddingBackend                 transport, auth, or malformed response
//
// # Retry
//
// The REST provider retries transport failures, 429 and 5xx responses with
// exponential backoff (3 attempts, 100ms doubling to 5s). Other 4xx
// responses and malformed bodies fail immediately. Cancelling the context
// stops the retry loop and returns the context error.
package embedder
