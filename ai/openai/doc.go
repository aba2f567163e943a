// Package openai provides ai.Embedder and ai.Completer implementations for
// OpenAI-compatible APIs (OpenAI, Ollama, LocalAI, vLLM).
package openai
