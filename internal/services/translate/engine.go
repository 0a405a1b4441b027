package translate

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"glossa/internal/config"
	"glossa/internal/language"
	"glossa/internal/logging"
	"glossa/internal/services"
	"glossa/internal/subtitles"
)

const (
	defaultBatchSize   = 20
	defaultConcurrency = 3
)

// EngineConfig tunes batching and request behavior.
type EngineConfig struct {
	// BatchSize is the maximum segments per provider request.
	BatchSize int
	// Concurrency bounds in-flight batches.
	Concurrency int
	// Timeout applies per attempt; 0 leaves timing to the HTTP client.
	Timeout time.Duration
}

// EngineConfigFromConfig maps the translation settings.
func EngineConfigFromConfig(cfg *config.Config) EngineConfig {
	if cfg == nil {
		return EngineConfig{}
	}
	return EngineConfig{
		BatchSize:   cfg.Translation.BatchSize,
		Concurrency: cfg.Translation.Concurrency,
		Timeout:     time.Duration(cfg.Translation.TimeoutSeconds) * time.Second,
	}
}

// Engine applies a provider to segments batch by batch. Translation failures
// flag the affected segments and keep their source text; only cancellation
// and misconfiguration abort a run.
type Engine struct {
	provider    Translator
	policy      RetryPolicy
	batchSize   int
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewEngine constructs an engine around the provider.
func NewEngine(provider Translator, policy RetryPolicy, cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Engine{
		provider:    provider,
		policy:      policy,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		logger:      logging.NewComponentLogger(logger, "translator"),
	}
}

// Translate maps every segment to a TranslatedSegment, preserving order,
// count, and timestamps exactly. Whitespace-only text passes through without
// a network call, and matching source/target languages short-circuit to
// identity. onProgress receives monotonic 0..1 fractions by completed batch.
func (e *Engine) Translate(ctx context.Context, segments []subtitles.Segment, sourceLang, targetLang string, onProgress func(float64)) ([]subtitles.TranslatedSegment, error) {
	if e.provider == nil {
		return nil, services.Wrap(services.ErrConfiguration, "translating", "translate segments", "no provider configured", nil)
	}
	target := language.Normalize(targetLang)
	if target == "" {
		return nil, services.Wrap(services.ErrValidation, "translating", "translate segments", "target language is required", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress := newProgressGuard(onProgress)
	results := make([]subtitles.TranslatedSegment, len(segments))
	if len(segments) == 0 {
		progress.report(1)
		return results, nil
	}

	source := language.Normalize(sourceLang)
	if source != "" && source == target {
		for i, seg := range segments {
			results[i] = subtitles.TranslatedSegment{Segment: seg, Translated: seg.Text}
		}
		progress.report(1)
		return results, nil
	}

	totalBatches := (len(segments) + e.batchSize - 1) / e.batchSize
	e.logger.Info("translating segments",
		logging.Int("segments", len(segments)),
		logging.Int("batches", totalBatches),
		logging.String("engine", e.provider.Name()),
		logging.String("source", source),
		logging.String("target", target),
	)

	var (
		wg        sync.WaitGroup
		completed atomic.Int32
		sem       = make(chan struct{}, e.concurrency)
	)
	for start := 0; start < len(segments); start += e.batchSize {
		end := start + e.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(offset int, batch []subtitles.Segment) {
			defer wg.Done()
			defer func() { <-sem }()

			e.translateBatch(ctx, batch, results[offset:offset+len(batch)], source, target)

			done := completed.Add(1)
			progress.report(float64(done) / float64(totalBatches))
		}(start, segments[start:end])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Failed {
			failed++
		}
	}
	if failed > 0 {
		e.logger.Warn("translation completed with flagged segments",
			logging.Int("failed", failed),
			logging.Int("segments", len(results)),
		)
	} else {
		e.logger.Info("translation complete", logging.Int("segments", len(results)))
	}
	return results, nil
}

// translateBatch fills out[i] for every batch[i]. Blank segments pass
// through; the rest go to the provider in one request, retried per policy.
func (e *Engine) translateBatch(ctx context.Context, batch []subtitles.Segment, out []subtitles.TranslatedSegment, source, target string) {
	texts := make([]string, 0, len(batch))
	positions := make([]int, 0, len(batch))
	for i, seg := range batch {
		out[i] = subtitles.TranslatedSegment{Segment: seg}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		texts = append(texts, seg.Text)
		positions = append(positions, i)
	}
	if len(texts) == 0 {
		return
	}

	var translations []string
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		var attemptErr error
		translations, attemptErr = e.provider.TranslateBatch(attemptCtx, texts, source, target)
		return attemptErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn("batch translation failed, keeping source text",
			logging.Int("segments", len(texts)),
			logging.Error(err),
		)
		for _, pos := range positions {
			out[pos].Failed = true
		}
		return
	}

	// Repair wrong counts positionally: missing or blank entries are
	// flagged and fall back to their source text at display time.
	for k, pos := range positions {
		if k < len(translations) && strings.TrimSpace(translations[k]) != "" {
			out[pos].Translated = translations[k]
			continue
		}
		out[pos].Failed = true
	}
	if len(translations) != len(texts) {
		e.logger.Warn("provider returned wrong translation count",
			logging.Int("requested", len(texts)),
			logging.Int("returned", len(translations)),
		)
	}
}

// progressGuard keeps concurrent batch completions from reporting progress
// out of order.
type progressGuard struct {
	mu   sync.Mutex
	last float64
	fn   func(float64)
}

func newProgressGuard(fn func(float64)) *progressGuard {
	return &progressGuard{fn: fn}
}

func (g *progressGuard) report(fraction float64) {
	if g.fn == nil {
		return
	}
	if fraction > 1 {
		fraction = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if fraction <= g.last {
		return
	}
	g.last = fraction
	g.fn(fraction)
}
