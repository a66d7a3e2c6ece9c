package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/metrics"
)

var ErrAlreadyRunning = errors.New("pipeline run already in progress")

type Report struct {
	Processed int `json:"processed"`
	Delivered int `json:"delivered"`
}

// Service composes fetch, summarize and store into a run, and store,
// assemble and send into a delivery. At most one of them executes at a time.
type Service struct {
	fetcher    Fetcher
	summarizer Summarizer
	store      Store
	assembler  Assembler
	output     Output

	token chan struct{}
}

func NewService(fetcher Fetcher, summarizer Summarizer, store Store, assembler Assembler, output Output) *Service {
	return &Service{
		fetcher:    fetcher,
		summarizer: summarizer,
		store:      store,
		assembler:  assembler,
		output:     output,
		token:      make(chan struct{}, 1),
	}
}

// RunOnce fetches, summarizes and stores new articles and returns how many
// were stored. It fails with ErrAlreadyRunning when another run is active.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	if !s.tryAcquire() {
		return 0, ErrAlreadyRunning
	}
	defer s.release()

	return s.ingest(ctx)
}

// Deliver sends every unsent article and marks them sent.
func (s *Service) Deliver(ctx context.Context) (Report, error) {
	if !s.tryAcquire() {
		return Report{}, ErrAlreadyRunning
	}
	defer s.release()

	delivered, err := s.deliver(ctx)
	return Report{Delivered: delivered}, err
}

// Digest runs ingestion followed by delivery.
func (s *Service) Digest(ctx context.Context) (Report, error) {
	if !s.tryAcquire() {
		return Report{}, ErrAlreadyRunning
	}
	defer s.release()

	return s.cycle(ctx)
}

// RunCycle is Digest for the scheduler: it waits for a concurrent run to
// finish instead of failing.
func (s *Service) RunCycle(ctx context.Context) error {
	select {
	case s.token <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer s.release()

	report, err := s.cycle(ctx)
	slog.Info("Cycle finished", "processed", report.Processed, "delivered", report.Delivered)
	return err
}

func (s *Service) tryAcquire() bool {
	select {
	case s.token <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Service) release() {
	<-s.token
}

// cycle delivers even when ingestion failed part way, so that articles
// stored before the failure are not held back.
func (s *Service) cycle(ctx context.Context) (Report, error) {
	processed, ingestErr := s.ingest(ctx)
	if ingestErr != nil && ctx.Err() != nil {
		return Report{Processed: processed}, ingestErr
	}

	delivered, deliverErr := s.deliver(ctx)

	return Report{Processed: processed, Delivered: delivered}, errors.Join(ingestErr, deliverErr)
}

func (s *Service) ingest(ctx context.Context) (int, error) {
	start := time.Now()
	defer metrics.ObserveRun(metrics.RunKindIngest, start)

	candidates, err := s.fetcher.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch feeds: %w", err)
	}

	if len(candidates) == 0 {
		slog.Info("No new articles to process")
		return 0, nil
	}

	stored := 0
	fallbacks := 0

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		slog.Debug("Processing article", "index", i+1, "total", len(candidates), "url", c.URL)

		result := s.summarizer.Run(ctx, c.Title, c.Description)
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if result.Fallback {
			fallbacks++
		}

		ok, err := s.store.Add(ctx, database.NewArticle{
			URL:           c.URL,
			Title:         c.Title,
			Source:        c.Source,
			PublishedDate: c.PublishedDate,
			Summary:       result.Summary,
			Category:      result.Category,
		})
		if err != nil {
			return stored, fmt.Errorf("failed to store article: %w", err)
		}
		if ok {
			stored++
			metrics.ArticleStored()
		}
	}

	slog.Info("Articles processed",
		"candidates", len(candidates),
		"stored", stored,
		"fallbacks", fallbacks,
		"duration", time.Since(start))

	return stored, nil
}

func (s *Service) deliver(ctx context.Context) (int, error) {
	start := time.Now()
	defer metrics.ObserveRun(metrics.RunKindDeliver, start)

	articles, err := s.store.Unsent(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get unsent articles: %w", err)
	}

	d := s.assembler.Build(articles)
	if d.Empty() {
		slog.Info("No new articles to deliver")
		return 0, nil
	}

	if err := s.output.SendText(ctx, d.Header); err != nil {
		return 0, fmt.Errorf("failed to send digest header: %w", err)
	}

	for _, section := range d.Sections {
		if err := s.output.SendText(ctx, section.Heading); err != nil {
			return 0, fmt.Errorf("failed to send section heading: %w", err)
		}
		for _, entry := range section.Entries {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if err := s.output.SendArticle(ctx, entry); err != nil {
				return 0, fmt.Errorf("failed to send article %d: %w", entry.ID, err)
			}
		}
	}

	ids := d.IDs()
	if err := s.store.MarkSent(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to mark articles as sent: %w", err)
	}
	metrics.ArticlesDelivered(len(ids))

	slog.Info("Digest delivered", "articles", len(ids), "sections", len(d.Sections), "duration", time.Since(start))

	return len(ids), nil
}
