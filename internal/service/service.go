package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lexiguard/lexiguard/internal/agent"
	"github.com/lexiguard/lexiguard/internal/config"
	"github.com/lexiguard/lexiguard/internal/grader"
	"github.com/lexiguard/lexiguard/internal/ingest"
	"github.com/lexiguard/lexiguard/internal/llm"
	"github.com/lexiguard/lexiguard/internal/retrieval"
	"github.com/lexiguard/lexiguard/internal/tools"
	"github.com/lexiguard/lexiguard/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const schemaTimeout = 30 * time.Second

// Service owns the process-wide collaborators: model clients, the document
// index, the tool registry and the agent. Built once at startup and shared
// by every request.
type Service struct {
	cfg       *config.Config
	agent     *agent.LegalAgent
	retriever retrieval.Retriever
	store     retrieval.Store
	registry  *tools.Registry
	pipeline  *ingest.Pipeline
	metrics   *prometheus.Registry
}

// Health is a snapshot of the service's dependencies.
type Health struct {
	Backend  string   `json:"backend"`
	Passages int      `json:"passages"`
	Tools    []string `json:"tools"`
}

// New builds a Service from cfg. The weaviate backend has its schema
// created when missing.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	chatClient, err := llm.NewClient(cfg.LLM.ClientConfig())
	if err != nil {
		return nil, WrapError(err, ErrConfig, "failed to create LLM client")
	}
	graderConfig := cfg.LLM.ClientConfig().WithModel(cfg.GraderModel())
	graderClient, err := llm.NewClient(&graderConfig)
	if err != nil {
		return nil, WrapError(err, ErrConfig, "failed to create grader client")
	}

	s := &Service{
		cfg:      cfg,
		registry: tools.NewRegistry(),
		metrics:  prometheus.NewRegistry(),
	}
	s.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	embedder := retrieval.NewOpenAIEmbedder(chatClient, cfg.Retrieval.EmbeddingModel)
	if err := s.openIndex(ctx, embedder); err != nil {
		return nil, err
	}

	if s.store != nil {
		splitter, err := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
		if err != nil {
			_ = s.Close()
			return nil, WrapError(err, ErrConfig, "invalid chunking configuration")
		}
		s.pipeline, err = ingest.NewPipeline(s.store, embedder, cfg.Ingest.DocumentsDir,
			ingest.WithSplitter(splitter),
			ingest.WithBatchSize(cfg.Ingest.BatchSize),
			ingest.WithConcurrency(cfg.Ingest.Concurrency),
		)
		if err != nil {
			_ = s.Close()
			return nil, WrapError(err, ErrConfig, "failed to create ingestion pipeline")
		}
	}

	if err := s.registerTools(); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.agent, err = agent.NewLegalAgent(agent.Deps{
		Generator: agent.NewModelGenerator(chatClient, s.registry, agent.WithLanguageHint(cfg.Agent.LanguageHint)),
		Invoker:   agent.NewToolInvoker(s.registry),
		Grader:    grader.NewLLMGrader(graderClient),
	},
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithMetrics(agent.NewMetrics(s.metrics)),
	)
	if err != nil {
		_ = s.Close()
		return nil, WrapError(err, ErrConfig, "failed to create agent")
	}

	log.Info("Service ready: model=%s grader=%s backend=%s tools=%v",
		chatClient.Model(), graderClient.Model(), cfg.Retrieval.Backend, s.registry.List())
	return s, nil
}

func (s *Service) openIndex(ctx context.Context, embedder retrieval.Embedder) error {
	rc := s.cfg.Retrieval
	switch rc.Backend {
	case config.BackendSQLite:
		idx, err := retrieval.NewSQLiteIndex(rc.DBPath, embedder, rc.TopK)
		if err != nil {
			return WrapError(err, ErrIndex, "failed to open SQLite index").WithContext("path", rc.DBPath)
		}
		s.store = idx
	case config.BackendWeaviate:
		client, err := retrieval.NewWeaviateClient(rc.WeaviateURL)
		if err != nil {
			return WrapError(err, ErrConfig, "invalid Weaviate URL").WithContext("url", rc.WeaviateURL)
		}
		idx, err := retrieval.NewWeaviateIndex(client, embedder, rc.WeaviateClass, rc.TopK)
		if err != nil {
			return WrapError(err, ErrConfig, "failed to create Weaviate index")
		}
		schemaCtx, cancel := context.WithTimeout(ctx, schemaTimeout)
		defer cancel()
		if err := idx.EnsureSchema(schemaCtx); err != nil {
			return WrapError(err, ErrIndex, "failed to prepare Weaviate schema").WithContext("class", rc.WeaviateClass)
		}
		s.store = idx
	default:
		log.Warn("No document index configured, legal research will report the database as unavailable")
		s.retriever = retrieval.Unavailable{}
		return nil
	}
	s.retriever = s.store
	return nil
}

func (s *Service) registerTools() error {
	if err := s.registry.Register(tools.NewLegalResearchTool(s.retriever)); err != nil {
		return WrapError(err, ErrConfig, "failed to register legal research tool")
	}
	if !s.cfg.Search.Active() {
		return nil
	}
	client := tools.NewLegalSearchClient(s.cfg.Search.APIKey, s.cfg.Search.APIURL,
		tools.WithRateLimit(s.cfg.Search.RatePerSecond),
		tools.WithTimeout(time.Duration(s.cfg.Search.Timeout)*time.Second),
	)
	if err := s.registry.Register(tools.NewLegalSearchTool(client)); err != nil {
		return WrapError(err, ErrConfig, "failed to register legal search tool")
	}
	return nil
}

// Ask answers query in the context of history.
func (s *Service) Ask(ctx context.Context, history []agent.Turn, query string) (*agent.Result, error) {
	result, err := s.agent.Ask(ctx, history, query)
	if err != nil {
		return nil, err
	}
	for _, failure := range adapterFailures(result) {
		Handle(failure)
	}
	log.Info("Answered query: outcome=%s loop_count=%d steps=%d tool_calls=%d",
		result.Outcome, result.LoopCount, result.Steps, len(result.ToolCalls))
	return result, nil
}

// adapterFailures classifies the tool calls of result that failed. The model
// saw those failures as text, so the answer was produced without them.
func adapterFailures(result *agent.Result) []*Error {
	var ret []*Error
	for _, call := range result.ToolCalls {
		if !call.IsError {
			continue
		}
		ret = append(ret, NewError(ErrAdapter, "tool call failed").
			WithContext("tool", call.ToolName).
			WithContext("call_id", call.CallID))
	}
	return ret
}

// Pipeline returns the ingestion pipeline, or nil without an index.
func (s *Service) Pipeline() *ingest.Pipeline {
	return s.pipeline
}

// Ingest indexes every document below the configured documents directory.
func (s *Service) Ingest(ctx context.Context) (*ingest.Report, error) {
	if s.pipeline == nil {
		return nil, NewError(ErrIndex, "no document index configured").WithContext("backend", s.cfg.Retrieval.Backend)
	}
	return s.pipeline.IngestDir(ctx)
}

// Health reports the index size and registered tools.
func (s *Service) Health(ctx context.Context) (*Health, error) {
	h := &Health{
		Backend: s.cfg.Retrieval.Backend,
		Tools:   s.registry.List(),
	}
	if s.store == nil {
		return h, nil
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return h, WrapError(err, ErrIndex, "failed to count passages")
	}
	h.Passages = n
	return h, nil
}

// Gatherer exposes the service metrics.
func (s *Service) Gatherer() prometheus.Gatherer {
	return s.metrics
}

func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	return nil
}
