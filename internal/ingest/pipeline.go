package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiguard/lexiguard/internal/retrieval"
	"github.com/lexiguard/lexiguard/pkg/file"
	"github.com/lexiguard/lexiguard/pkg/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Report summarizes one ingestion run.
type Report struct {
	Files    int
	Passages int
	Failed   []string
}

// Pipeline loads documents, chunks them, embeds the chunks and replaces each
// source's passages in the store.
type Pipeline struct {
	store       retrieval.Store
	embedder    retrieval.Embedder
	root        string
	splitter    *Splitter
	batchSize   int
	concurrency int
}

type Option func(*Pipeline)

func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithConcurrency bounds the number of embedding requests in flight.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithSplitter(s *Splitter) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.splitter = s
		}
	}
}

// NewPipeline creates a pipeline over the documents below root. Sources are
// recorded relative to root.
func NewPipeline(store retrieval.Store, embedder retrieval.Embedder, root string, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	splitter, err := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		root:        root,
		splitter:    splitter,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Root returns the documents directory.
func (p *Pipeline) Root() string {
	return p.root
}

// IngestFile indexes one file and returns the number of stored passages.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	doc, err := Load(path)
	if err != nil {
		return 0, err
	}
	source := file.RelSlash(p.root, path)

	chunks, err := p.splitter.Split(doc.Text)
	if err != nil {
		return 0, fmt.Errorf("failed to split %s: %w", source, err)
	}
	vectors, err := p.embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %s: %w", source, err)
	}

	passages := make([]retrieval.Passage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = retrieval.Passage{
			Source:     source,
			ChunkIndex: i,
			Content:    chunk,
			Embedding:  vectors[i],
		}
	}
	if err := p.store.Upsert(ctx, source, passages); err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", source, err)
	}
	log.Debug("Indexed %s: %d passages", source, len(passages))
	return len(passages), nil
}

// embed embeds chunks in batches, running up to p.concurrency batches at once.
func (p *Pipeline) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for start := 0; start < len(chunks); start += p.batchSize {
		end := min(start+p.batchSize, len(chunks))
		g.Go(func() error {
			got, err := p.embedder.Embed(ctx, chunks[start:end])
			if err != nil {
				return err
			}
			if len(got) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(got), end-start)
			}
			copy(vectors[start:end], got)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// IngestFiles indexes each path in turn. A failing file does not stop the
// run; the joined failures are returned with the report.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{}
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := p.IngestFile(ctx, path)
		if err != nil {
			log.Error("Failed to ingest %s: %v", path, err)
			report.Failed = append(report.Failed, path)
			errs = append(errs, err)
			continue
		}
		report.Files++
		report.Passages += n
	}
	log.Info("Ingestion finished: %d files, %d passages, %d failed", report.Files, report.Passages, len(report.Failed))
	return report, errors.Join(errs...)
}

// IngestDir indexes every supported file below the root.
func (p *Pipeline) IngestDir(ctx context.Context) (*Report, error) {
	paths, err := file.FindAll(p.root, Extensions...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", p.root, err)
	}
	return p.IngestFiles(ctx, paths)
}
