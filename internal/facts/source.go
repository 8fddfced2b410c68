package facts

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rilhia/the-hallucinated-truth/internal/game"
	"github.com/rilhia/the-hallucinated-truth/internal/llm"
	"github.com/rilhia/the-hallucinated-truth/internal/search"
)

// SourceConfig configures the fact-gathering pipeline.
type SourceConfig struct {
	MaxPages     int
	Concurrency  int
	UserAgent    string
	FetchTimeout time.Duration
	MaxBodyBytes int64

	// ExtractTemperature is the sampling temperature for fact extraction.
	ExtractTemperature float64

	// Seed seeds the curation shuffle; 0 uses the current time.
	Seed int64
}

// Source implements game.FactSource: search, scrape, chunk, extract, curate.
type Source struct {
	provider    search.Provider
	fetcher     *Fetcher
	client      llm.Client
	maxPages    int
	concurrency int
	temperature float64
	rng         *rand.Rand
	rngMu       sync.Mutex
	logger      *zap.Logger
}

// NewSource creates a fact source.
func NewSource(provider search.Provider, client llm.Client, config SourceConfig, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxPages := config.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Source{
		provider:    provider,
		fetcher:     NewFetcher(config.UserAgent, config.FetchTimeout, config.MaxBodyBytes),
		client:      client,
		maxPages:    maxPages,
		concurrency: concurrency,
		temperature: config.ExtractTemperature,
		rng:         rand.New(rand.NewSource(seed)),
		logger:      logger.Named("facts"),
	}
}

// GatherFacts runs the full pipeline for a subject. An empty result is not an
// error here; the session decides what an empty fact list means.
func (s *Source) GatherFacts(ctx context.Context, subject string) ([]game.Fact, error) {
	query := "In-depth, detailed, comprehensive facts about " + subject

	results, err := s.provider.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	pages := s.scrapeResults(ctx, results)
	s.logger.Info("scraped pages", zap.Int("results", len(results)), zap.Int("pages", len(pages)))

	chunks := s.relevantChunks(subject, pages)
	s.logger.Debug("chunked pages", zap.Int("chunks", len(chunks)))

	all := extractFromChunks(ctx, s.client, s.temperature, subject, chunks, s.logger)

	s.rngMu.Lock()
	curated := Curate(all, s.rng)
	s.rngMu.Unlock()

	if len(curated) < minCuratedFacts {
		s.logger.Warn("fewer facts than preferred", zap.Int("facts", len(curated)))
	}
	s.logger.Info("facts curated", zap.Int("raw", len(all)), zap.Int("curated", len(curated)))
	return curated, nil
}

// page is one scraped document.
type page struct {
	url  string
	text string
}

// scrapeResults fetches up to maxPages scrapable result URLs with bounded
// concurrency. Individual page failures are skipped, not fatal.
func (s *Source) scrapeResults(ctx context.Context, results []search.Result) []page {
	var urls []string
	for _, r := range results {
		if len(urls) >= s.maxPages {
			break
		}
		if !IsScrapableURL(r.Link) {
			s.logger.Debug("skipping non-text result", zap.String("url", r.Link))
			continue
		}
		urls = append(urls, r.Link)
	}

	pages := make([]page, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			text, err := s.fetcher.FetchMainText(gctx, url)
			if err != nil {
				s.logger.Warn("failed to scrape page", zap.String("url", url), zap.Error(err))
				return nil
			}
			pages[i] = page{url: url, text: text}
			return nil
		})
	}
	_ = g.Wait()

	// Preserve result order, dropping failures.
	kept := pages[:0]
	for _, p := range pages {
		if p.text != "" {
			kept = append(kept, p)
		}
	}
	return kept
}

// relevantChunks splits pages into overlapping chunks and keeps the ones that
// look like they are about the subject.
func (s *Source) relevantChunks(subject string, pages []page) []chunk {
	var chunks []chunk
	for _, p := range pages {
		for _, text := range SplitChunks(p.text, chunkSize, chunkOverlap) {
			if !ChunkIsAboutSubject(subject, text) {
				continue
			}
			chunks = append(chunks, chunk{text: text, url: p.url, source: p.url})
		}
	}
	return chunks
}
