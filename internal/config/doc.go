// Package config loads the application configuration.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. built-in defaults (Default)
//  2. a YAML file, when present
//  3. a .env file in the working directory, when present
//  4. RAG_* environment variables
//
// API keys are never read from the YAML file. embed.api_key_env and
// generation.api_key_env name the variables that hold them.
//
// Example file:
//
//	embed:
//	  provider: nvidia
//	  model: nvidia/nv-embedqa-e5-v5
//	retrieval:
//	  top_k: 5
//	  confident_score: 0.3
//	  confident_score_vague: 0.4
//	cache:
//	  backend: sqlite
//	  max_age: 720h
package config
