// Package ai defines the interfaces and configuration for external AI
// services: text embedding and reasoning-model completion. Concrete clients
// live in subpackages (openai for OpenAI-compatible APIs, mock for tests);
// retry decorators wrap any implementation with backoff and per-attempt
// deadlines.
package ai
