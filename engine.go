// Copyright 2026 Zein Alasali
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package buildquery is a semantic retrieval and grounded-answer engine for
// multi-tenant construction project data. The Engine wires storage, the AI
// provider, and the pipeline components together; applications apply entity
// lifecycle events through a Synchronizer and ask questions through an
// answer Orchestrator.
package buildquery

import (
	"io"
	"log/slog"

	"github.com/zeinalasali/buildquery/ai"
	"github.com/zeinalasali/buildquery/ai/openai"
	"github.com/zeinalasali/buildquery/answer"
	"github.com/zeinalasali/buildquery/reindex"
	"github.com/zeinalasali/buildquery/retrieve"
	"github.com/zeinalasali/buildquery/storage"
	"github.com/zeinalasali/buildquery/storage/badger"
	"github.com/zeinalasali/buildquery/syncer"
)

// Engine owns the storage backend, the repositories, and the AI provider,
// and builds the pipeline components that operate on them.
type Engine struct {
	backend     *badger.Backend
	entityRepo  storage.EntityRepository
	vectorRepo  storage.VectorRepository
	checkpoints storage.CheckpointRepository
	provider    ai.AIProvider
	retry       *ai.RetryConfig
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	retry    *ai.RetryConfig
	inMemory bool
}

// WithAIConfig sets the provider configuration used to build the default
// OpenAI-compatible provider. Ignored when WithProvider is given.
func WithAIConfig(cfg *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider injects a pre-built AI provider, e.g. a mock in tests.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithRetryConfig sets the retry policy wrapped around provider calls.
func WithRetryConfig(cfg *ai.RetryConfig) EngineOption {
	return func(o *engineOptions) {
		o.retry = cfg
	}
}

// WithInMemory selects an in-memory store, ignoring the file path.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// NewEngine opens the store at filePath and initializes the AI provider.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		retry:    ai.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	entityRepo, err := badger.NewEntityRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	vectorRepo, err := badger.NewVectorRepository(backend)
	if err != nil {
		entityRepo.Close()
		backend.Close()
		return nil, err
	}

	checkpointRepo := badger.NewCheckpointRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			vectorRepo.Close()
			entityRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Engine{
		backend:     backend,
		entityRepo:  entityRepo,
		vectorRepo:  vectorRepo,
		checkpoints: checkpointRepo,
		provider:    provider,
		retry:       options.retry,
		logger:      slog.Default(),
	}, nil
}

// Close releases the AI provider and the storage backend.
func (e *Engine) Close() error {
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.vectorRepo.Close(); err != nil {
		e.logger.Error("error closing vector repository", "err", err)
		return err
	}
	if err := e.entityRepo.Close(); err != nil {
		e.logger.Error("error closing entity repository", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// EntityRepository returns the snapshot mirror store.
func (e *Engine) EntityRepository() storage.EntityRepository {
	return e.entityRepo
}

// VectorRepository returns the embedding record store.
func (e *Engine) VectorRepository() storage.VectorRepository {
	return e.vectorRepo
}

// CheckpointRepository returns the maintenance checkpoint store.
func (e *Engine) CheckpointRepository() storage.CheckpointRepository {
	return e.checkpoints
}

// retryEmbedder wraps the provider's embedder in the engine's retry policy.
func (e *Engine) retryEmbedder() ai.Embedder {
	return ai.NewRetryEmbedder(e.provider.Embedder(), e.retry)
}

// NewSynchronizer builds a Synchronizer over the engine's stores.
func (e *Engine) NewSynchronizer(opts ...syncer.Option) (*syncer.Synchronizer, error) {
	return syncer.NewSynchronizer(e.entityRepo, e.vectorRepo, e.retryEmbedder(), opts...)
}

// NewRetriever builds a Retriever over the engine's vector store.
func (e *Engine) NewRetriever(opts ...retrieve.Option) (*retrieve.Retriever, error) {
	return retrieve.NewRetriever(e.vectorRepo, e.retryEmbedder(), opts...)
}

// NewAnswerer builds the full question-answering orchestrator.
func (e *Engine) NewAnswerer(opts ...answer.Option) (*answer.Orchestrator, error) {
	retriever, err := e.NewRetriever()
	if err != nil {
		return nil, err
	}
	assembler, err := answer.NewAssembler(e.entityRepo)
	if err != nil {
		return nil, err
	}
	completer := ai.NewRetryCompleter(e.provider.Completer(), e.retry)
	return answer.NewOrchestrator(retriever, assembler, completer, opts...)
}

// NewReindexer builds a reindexing pass over the engine's stores.
// progress: where to write progress output (typically os.Stderr)
func (e *Engine) NewReindexer(config *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	return reindex.NewReindexer(e.entityRepo, e.vectorRepo, e.checkpoints, e.retryEmbedder(), config, progress)
}
