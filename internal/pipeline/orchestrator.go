package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"glossa/internal/config"
	"glossa/internal/ledger"
	"glossa/internal/logging"
	"glossa/internal/notifications"
	"glossa/internal/services"
	"glossa/internal/services/ffmpeg"
	"glossa/internal/services/translate"
	"glossa/internal/services/whisper"
	"glossa/internal/subtitles"
)

// Prober inspects media containers before extraction starts.
type Prober interface {
	Probe(ctx context.Context, path string) (ffmpeg.MediaInfo, error)
}

// Extractor converts the source audio stream to the WAV the recognizer
// expects.
type Extractor interface {
	Extract(ctx context.Context, source, dest string, total time.Duration, onProgress func(float64)) (ffmpeg.AudioTrack, error)
}

// Recognizer produces timestamped segments from an audio file, delivering
// each one to the sink as it decodes.
type Recognizer interface {
	TranscribeStream(ctx context.Context, audioPath string, opts whisper.Options, sink func(subtitles.Segment), onProgress func(float64)) (whisper.Result, error)
}

// Translator maps segments to translated segments, preserving order, count,
// and timestamps.
type Translator interface {
	Translate(ctx context.Context, segments []subtitles.Segment, sourceLang, targetLang string, onProgress func(float64)) ([]subtitles.TranslatedSegment, error)
}

// Muxer writes subtitle tracks into video containers.
type Muxer interface {
	Attach(ctx context.Context, source, sidecar, output, lang string) error
	BurnIn(ctx context.Context, source, sidecar, output string) error
}

// Orchestrator drives one job at a time through the pipeline stages.
type Orchestrator struct {
	cfg      *config.Config
	store    *ledger.Store
	logger   *slog.Logger
	notifier notifications.Service

	prober        Prober
	extractor     Extractor
	recognizer    Recognizer
	muxer         Muxer
	translatorFor func(engine string) (Translator, error)

	onProgress ProgressFunc

	heartbeatInterval time.Duration

	mu     sync.Mutex
	base   context.Context
	active *execution
}

type execution struct {
	job    *ledger.Job
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Option adjusts orchestrator construction; tests use these to substitute
// stub services.
type Option func(*Orchestrator)

// WithProber replaces the media prober.
func WithProber(p Prober) Option { return func(o *Orchestrator) { o.prober = p } }

// WithExtractor replaces the audio extractor.
func WithExtractor(e Extractor) Option { return func(o *Orchestrator) { o.extractor = e } }

// WithRecognizer replaces the speech recognizer.
func WithRecognizer(r Recognizer) Option { return func(o *Orchestrator) { o.recognizer = r } }

// WithMuxer replaces the output muxer.
func WithMuxer(m Muxer) Option { return func(o *Orchestrator) { o.muxer = m } }

// WithTranslator pins every engine key to one translator.
func WithTranslator(t Translator) Option {
	return func(o *Orchestrator) {
		o.translatorFor = func(string) (Translator, error) { return t, nil }
	}
}

// WithNotifier replaces the notification service.
func WithNotifier(n notifications.Service) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithProgressFunc registers a callback for progress and terminal events.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// New wires an orchestrator from the configuration. The registry is shared
// so sequential jobs reuse loaded model handles.
func New(cfg *config.Config, store *ledger.Store, registry *whisper.Registry, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:               cfg,
		store:             store,
		logger:            logging.NewComponentLogger(logger, "pipeline"),
		notifier:          notifications.NewService(cfg),
		prober:            ffmpeg.NewProber(cfg.FFprobeBinary()),
		extractor:         ffmpeg.NewExtractor(cfg.FFmpegBinary(), logger),
		recognizer:        whisper.NewRecognizer(cfg.WhisperBinary(), registry, logger),
		muxer:             ffmpeg.NewMuxer(cfg.FFmpegBinary(), logger),
		base:              context.Background(),
		heartbeatInterval: time.Duration(cfg.Daemon.HeartbeatInterval) * time.Second,
	}
	o.translatorFor = func(engine string) (Translator, error) {
		return o.buildTranslator(logger, engine)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// buildTranslator selects the provider named by the job's engine key and
// wraps it in a retrying batch engine.
func (o *Orchestrator) buildTranslator(logger *slog.Logger, engine string) (Translator, error) {
	var clientOpts []translate.Option
	if base := strings.TrimSpace(o.cfg.Translation.BaseURL); base != "" {
		clientOpts = append(clientOpts, translate.WithBaseURL(base))
	}

	var provider translate.Translator
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "deepl":
		provider = translate.NewDeepL(o.cfg.Translation.APIKey, o.cfg.Translation.Formality, clientOpts...)
	case "openai", "":
		provider = translate.NewOpenAI(o.cfg.Translation.APIKey, o.cfg.Translation.Model, clientOpts...)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "translating", "select engine", fmt.Sprintf("unknown translation engine %q", engine), nil)
	}
	return translate.NewEngine(provider, translate.PolicyFromConfig(o.cfg), translate.EngineConfigFromConfig(o.cfg), logger), nil
}

// Start binds future jobs to ctx; cancelling it cancels the active run.
// Call it once before accepting submissions. Without it jobs run under
// context.Background and only explicit Cancel stops them.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.base = ctx
}

// Submit validates the request, claims the busy gate, persists the pending
// job, and launches the run in its own goroutine. It never blocks on
// pipeline work and never queues: a second submission while a job is active
// is rejected with a busy error.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*ledger.Job, error) {
	o.mu.Lock()
	base := o.base
	o.mu.Unlock()

	snapshot, _, err := o.launch(ctx, base, req)
	return snapshot, err
}

// Run executes a request synchronously and returns the settled job. The
// one-shot CLI path uses this; the busy gate applies the same as Submit.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*ledger.Job, error) {
	_, exec, err := o.launch(ctx, ctx, req)
	if err != nil {
		return nil, err
	}
	<-exec.done

	final := *exec.job
	return &final, exec.err
}

// launch claims the gate and starts the run goroutine. saveCtx bounds the
// initial persistence; runCtx derives from base and outlives the caller.
func (o *Orchestrator) launch(saveCtx, base context.Context, req Request) (*ledger.Job, *execution, error) {
	job, err := NewJob(o.cfg, req)
	if err != nil {
		return nil, nil, err
	}

	o.mu.Lock()
	if o.active != nil {
		activeID := o.active.job.ID
		o.mu.Unlock()
		return nil, nil, services.Wrap(services.ErrBusy, "pipeline", "submit", fmt.Sprintf("job %s is still running", activeID), nil)
	}
	runCtx, cancel := context.WithCancel(base)
	exec := &execution{job: job, cancel: cancel, done: make(chan struct{})}
	o.active = exec
	o.mu.Unlock()

	if err := o.store.Save(saveCtx, job); err != nil {
		cancel()
		o.release(exec)
		return nil, nil, fmt.Errorf("persist pending job: %w", err)
	}

	snapshot := *job
	go o.run(runCtx, exec)
	return &snapshot, exec, nil
}

func (o *Orchestrator) release(exec *execution) {
	o.mu.Lock()
	if o.active == exec {
		o.active = nil
	}
	o.mu.Unlock()
}

// ActiveID reports the job currently holding the busy gate.
func (o *Orchestrator) ActiveID() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return "", false
	}
	return o.active.job.ID, true
}

// Cancel stops the named job at its next checkpoint. The run settles
// asynchronously; watch the ledger for the cancelled state. Cancelling a
// job that is not running reports validation or not-found depending on
// whether the ledger knows it.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "cancel", "job id is required", nil)
	}

	o.mu.Lock()
	exec := o.active
	o.mu.Unlock()
	if exec != nil && exec.job.ID == id {
		exec.cancel()
		return nil
	}

	job, err := o.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return services.Wrap(services.ErrValidation, "pipeline", "cancel", fmt.Sprintf("job %s is %s, not running", id, job.State), nil)
}

// Wait blocks until the active run settles or ctx expires. Daemon shutdown
// uses it to drain the in-flight job after cancelling the base context.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	exec := o.active
	o.mu.Unlock()
	if exec == nil {
		return nil
	}
	select {
	case <-exec.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// heartbeatLoop touches the ledger row on an interval so a dead process's
// jobs are detectable by startup recovery.
func (o *Orchestrator) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	interval := o.heartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					o.logger.Debug("heartbeat stopped by shutdown", logging.String(logging.FieldJobID, jobID))
				} else {
					o.logger.Warn("heartbeat update failed", logging.String(logging.FieldJobID, jobID), logging.Error(err))
				}
			}
		}
	}
}
