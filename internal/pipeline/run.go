package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"glossa/internal/language"
	"glossa/internal/ledger"
	"glossa/internal/logging"
	"glossa/internal/services"
	"glossa/internal/services/whisper"
	"glossa/internal/subtitles"
)

// progressMessageEvery sets how many segments pass between human-readable
// transcription updates.
const progressMessageEvery = 10

// runArtifacts carries whatever the stages produced so the terminal path
// can salvage partial output.
type runArtifacts struct {
	translated []subtitles.TranslatedSegment
}

// run is the whole life of one job: heartbeat on, stages through, terminal
// state persisted, gate released.
func (o *Orchestrator) run(ctx context.Context, exec *execution) {
	defer close(exec.done)
	defer o.release(exec)
	defer exec.cancel()

	job := exec.job
	correlationID := uuid.NewString()
	logger := o.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldCorrelationID, correlationID),
	)
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, correlationID)

	now := time.Now().UTC()
	job.StartedAt = &now

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source_file", job.SourcePath),
		logging.String("target_language", job.TargetLanguage),
		logging.String("model", job.Model),
		logging.String("engine", job.Engine),
		logging.String("output_mode", job.OutputMode),
	)
	if err := o.notifier.NotifyJobStarted(ctx, job.Title); err != nil {
		logger.Debug("start notification failed", logging.Error(err))
	}

	rep := newReporter(o, ctx, job)

	var hbWG sync.WaitGroup
	hbCtx, hbCancel := context.WithCancel(ctx)
	hbWG.Add(1)
	go o.heartbeatLoop(hbCtx, &hbWG, job.ID)

	art := &runArtifacts{}
	runErr := o.execute(ctx, job, rep, art, logger)

	hbCancel()
	hbWG.Wait()

	exec.err = runErr
	o.finalize(context.WithoutCancel(ctx), job, rep, art, logger, runErr)
}

// execute walks the forward stages. It returns nil only when every stage
// the job's output mode needs has finished.
func (o *Orchestrator) execute(ctx context.Context, job *ledger.Job, rep *reporter, art *runArtifacts, logger *slog.Logger) error {
	translator, err := o.translatorFor(job.Engine)
	if err != nil {
		return err
	}
	format := subtitles.Format(job.SubtitleFormat)

	workDir := filepath.Join(o.cfg.Paths.WorkDir, job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "create workspace", fmt.Sprintf("create %s", workDir), err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove job workspace", logging.Error(err))
		}
	}()

	// Extraction. The probe runs first so unreadable or audio-less files
	// fail before any conversion starts.
	if err := o.transition(ctx, job, rep, logger, ledger.StateExtracting); err != nil {
		return err
	}
	info, err := o.prober.Probe(ctx, job.SourcePath)
	if err != nil {
		return err
	}
	if !info.HasAudio() {
		return services.Wrap(services.ErrMedia, "extracting", "probe source", fmt.Sprintf("%s has no audio stream", job.SourcePath), nil)
	}
	tagLanguage := info.AudioLanguage()
	duration := info.Duration()

	audioPath := filepath.Join(workDir, "audio.wav")
	track, err := o.extractor.Extract(ctx, job.SourcePath, audioPath, duration, func(fraction float64) {
		rep.report(fraction*100, "")
	})
	if err != nil {
		return err
	}
	if track.Duration > 0 {
		duration = track.Duration
	}

	// Transcription, with translation of early segments overlapping when
	// the source language is already known.
	if err := o.transition(ctx, job, rep, logger, ledger.StateTranscribing); err != nil {
		return err
	}

	var totalSegments atomic.Int64
	coll := newCollector(
		translator,
		o.cfg.Translation.BatchSize,
		o.cfg.Translation.Concurrency,
		job.SourceLanguage,
		job.TargetLanguage,
		func(done int) {
			if total := totalSegments.Load(); total > 0 {
				rep.report(float64(done)/float64(total)*100, fmt.Sprintf("translated %d of %d segments", done, total))
			}
		},
	)
	segCh := make(chan subtitles.Segment, segmentBuffer)
	var collWG sync.WaitGroup
	collWG.Add(1)
	go func() {
		defer collWG.Done()
		coll.consume(ctx, segCh)
	}()

	transcribed := 0
	sink := func(seg subtitles.Segment) {
		select {
		case segCh <- seg:
		case <-ctx.Done():
			return
		}
		transcribed++
		if transcribed%progressMessageEvery == 0 {
			rep.report(-1, fmt.Sprintf("transcribed %d segments", transcribed))
		}
	}

	result, err := o.recognizer.TranscribeStream(ctx, audioPath, whisper.Options{
		Model:    job.Model,
		Language: job.SourceLanguage,
		Threads:  o.cfg.Transcription.Threads,
		Duration: duration,
	}, sink, func(fraction float64) {
		rep.report(fraction*100, "")
	})
	if err != nil {
		coll.abort()
		close(segCh)
		collWG.Wait()
		art.translated, _ = coll.results()
		job.SegmentsTotal = len(result.Segments)
		return err
	}

	segments := result.Segments
	job.SegmentsTotal = len(segments)
	if len(segments) == 0 {
		close(segCh)
		collWG.Wait()
		return services.Wrap(services.ErrTranscription, "transcribing", "decode audio", "no speech recognized", nil)
	}

	sourceLang := job.SourceLanguage
	if sourceLang == "" {
		sourceLang = result.DetectedLanguage
		if sourceLang == "" {
			sourceLang = tagLanguage
		}
		job.DetectedLanguage = sourceLang
		coll.setSource(sourceLang)
	}

	// Translation drains whatever the overlap has not flushed yet.
	if err := o.transition(ctx, job, rep, logger, ledger.StateTranslating); err != nil {
		coll.abort()
		close(segCh)
		collWG.Wait()
		art.translated, _ = coll.results()
		return err
	}
	totalSegments.Store(int64(len(segments)))
	close(segCh)
	collWG.Wait()

	translated, collErr := coll.results()
	art.translated = translated
	if collErr != nil {
		return collErr
	}
	job.SegmentsFailed = countFailed(translated)
	if job.SegmentsFailed > 0 {
		logger.Warn("some segments kept their source text",
			logging.Int("failed", job.SegmentsFailed),
			logging.Int("segments", len(translated)),
		)
	}

	// Assembly writes the sidecar; every output mode needs it.
	if err := o.transition(ctx, job, rep, logger, ledger.StateAssembling); err != nil {
		return err
	}
	assembled := subtitles.Assemble(translated, subtitles.PolicyFromConfig(o.cfg))
	sidecar := SidecarPath(job.SourcePath, job.OutputDir, format)
	if err := subtitles.WriteSidecar(assembled, sidecar, format); err != nil {
		return services.Wrap(services.ErrMux, "assembling", "write sidecar", fmt.Sprintf("write %s", sidecar), err)
	}
	job.SidecarPath = sidecar
	rep.report(100, fmt.Sprintf("%d cues written", len(assembled.Cues)))
	logger.Info("sidecar written",
		logging.String("sidecar", sidecar),
		logging.Int("cues", len(assembled.Cues)),
	)

	// Muxing only runs for the video-producing modes.
	mode := Mode(job.OutputMode)
	if mode == ModeMux || mode == ModeBurnIn {
		if err := o.transition(ctx, job, rep, logger, ledger.StateMuxing); err != nil {
			return err
		}
		output := VideoPath(job.SourcePath, job.OutputDir)
		if mode == ModeBurnIn {
			err = o.muxer.BurnIn(ctx, job.SourcePath, sidecar, output)
		} else {
			err = o.muxer.Attach(ctx, job.SourcePath, sidecar, output, language.ToISO3(job.TargetLanguage))
		}
		if err != nil {
			return err
		}
		job.VideoPath = output
	}
	return nil
}

// transition validates and persists a forward state change. ctx is checked
// first, making every transition a cancellation checkpoint.
func (o *Orchestrator) transition(ctx context.Context, job *ledger.Job, rep *reporter, logger *slog.Logger, to ledger.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ledger.ValidTransition(job.State, to) {
		return services.Wrap(services.ErrValidation, "pipeline", "transition", fmt.Sprintf("job %s cannot move from %s to %s", job.ID, job.State, to), nil)
	}
	job.State = to
	job.ProgressStage = string(to)
	job.ProgressPercent = 0
	job.ProgressMessage = stageMessage(to)
	if err := o.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist %s transition: %w", to, err)
	}
	rep.setStage(to, stageMessage(to))
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(logging.FieldStage, string(to)),
	)
	return nil
}

// finalize settles the terminal state. ctx must survive job cancellation so
// the outcome is always persisted.
func (o *Orchestrator) finalize(ctx context.Context, job *ledger.Job, rep *reporter, art *runArtifacts, logger *slog.Logger, runErr error) {
	finished := time.Now().UTC()
	job.FinishedAt = &finished
	job.LastHeartbeat = nil

	switch {
	case runErr == nil:
		job.State = ledger.StateCompleted
		job.ProgressStage = string(ledger.StateCompleted)
		job.ProgressPercent = 100
		job.ProgressMessage = completionMessage(job)
		job.ErrorMessage = ""
	case errors.Is(runErr, context.Canceled):
		o.writePartialSidecar(job, art, logger)
		job.State = ledger.StateCancelled
		job.ProgressStage = string(ledger.StateCancelled)
		job.ProgressMessage = "cancelled before completion"
		job.ErrorMessage = ""
	default:
		o.writePartialSidecar(job, art, logger)
		job.State = ledger.StateFailed
		job.ProgressStage = string(ledger.StateFailed)
		job.ProgressMessage = ""
		job.ErrorMessage = runErr.Error()
	}

	if err := o.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist terminal state", logging.Error(err))
	}

	switch job.State {
	case ledger.StateCompleted:
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.Int("segments", job.SegmentsTotal),
			logging.Int("segments_failed", job.SegmentsFailed),
			logging.String("sidecar", job.SidecarPath),
			logging.String("video", job.VideoPath),
			logging.Duration("job_duration", finished.Sub(valueOr(job.StartedAt, finished))),
		)
		if err := o.notifier.NotifyJobCompleted(ctx, job.Title, job.OutputPath(), job.SegmentsTotal, job.SegmentsFailed); err != nil {
			logger.Debug("completion notification failed", logging.Error(err))
		}
	case ledger.StateCancelled:
		logger.Info("job cancelled",
			logging.String(logging.FieldEventType, "job_cancelled"),
			logging.String("sidecar", job.SidecarPath),
		)
		if err := o.notifier.NotifyJobCancelled(ctx, job.Title); err != nil {
			logger.Debug("cancellation notification failed", logging.Error(err))
		}
	default:
		logger.Error("job failed",
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String("error_kind", services.Kind(runErr)),
			logging.String(logging.FieldStage, job.ProgressStage),
			logging.Error(runErr),
		)
		if err := o.notifier.NotifyJobFailed(ctx, job.Title, job.ErrorMessage); err != nil {
			logger.Debug("failure notification failed", logging.Error(err))
		}
	}

	rep.terminal(job.State, job.ProgressMessage, runErr)
}

// writePartialSidecar salvages translated segments from a run that ended
// early. Best effort: failures log and move on.
func (o *Orchestrator) writePartialSidecar(job *ledger.Job, art *runArtifacts, logger *slog.Logger) {
	if len(art.translated) == 0 || job.SidecarPath != "" {
		return
	}
	format := subtitles.Format(job.SubtitleFormat)
	track := subtitles.Assemble(art.translated, subtitles.PolicyFromConfig(o.cfg))
	path := SidecarPath(job.SourcePath, job.OutputDir, format)
	if err := subtitles.WriteSidecar(track, path, format); err != nil {
		logger.Warn("failed to write partial sidecar", logging.Error(err))
		return
	}
	job.SidecarPath = path
	job.SegmentsFailed = countFailed(art.translated)
	logger.Info("partial sidecar written",
		logging.String("sidecar", path),
		logging.Int("segments", len(art.translated)),
	)
}

func completionMessage(job *ledger.Job) string {
	if job.SegmentsFailed > 0 {
		return fmt.Sprintf("completed, %d of %d segments kept source text", job.SegmentsFailed, job.SegmentsTotal)
	}
	return fmt.Sprintf("completed, %d segments translated", job.SegmentsTotal)
}

func stageMessage(state ledger.State) string {
	switch state {
	case ledger.StateExtracting:
		return "extracting audio"
	case ledger.StateTranscribing:
		return "transcribing speech"
	case ledger.StateTranslating:
		return "translating segments"
	case ledger.StateAssembling:
		return "assembling subtitles"
	case ledger.StateMuxing:
		return "writing output video"
	}
	return string(state)
}

func countFailed(segments []subtitles.TranslatedSegment) int {
	failed := 0
	for _, seg := range segments {
		if seg.Failed {
			failed++
		}
	}
	return failed
}

func valueOr(t *time.Time, fallback time.Time) time.Time {
	if t != nil {
		return *t
	}
	return fallback
}

// reporter coalesces progress from the stages into ledger updates and
// events. Stage work reports from multiple goroutines; the mutex keeps
// observations ordered.
type reporter struct {
	o   *Orchestrator
	ctx context.Context
	job *ledger.Job

	mu      sync.Mutex
	stage   ledger.State
	percent float64
	message string
}

func newReporter(o *Orchestrator, ctx context.Context, job *ledger.Job) *reporter {
	return &reporter{o: o, ctx: ctx, job: job, stage: job.State}
}

// setStage resets progress for a new stage.
func (r *reporter) setStage(stage ledger.State, message string) {
	r.mu.Lock()
	r.stage = stage
	r.percent = 0
	r.message = message
	stageName := string(stage)
	r.mu.Unlock()

	r.publish(stageName, 0, message, false, "", nil)
}

// report records a progress observation. Negative percent keeps the last
// value; an empty message keeps the last message. Updates that would not
// change the whole-percent display are dropped.
func (r *reporter) report(percent float64, message string) {
	r.mu.Lock()
	if percent < 0 {
		percent = r.percent
	}
	if percent > 100 {
		percent = 100
	}
	if percent < r.percent {
		percent = r.percent
	}
	if message == "" {
		message = r.message
	}
	if int(percent) == int(r.percent) && message == r.message {
		r.mu.Unlock()
		return
	}
	r.percent = percent
	r.message = message
	stageName := string(r.stage)
	r.mu.Unlock()

	if err := r.o.store.UpdateProgress(r.ctx, r.job.ID, stageName, percent, message); err != nil && !errors.Is(err, context.Canceled) {
		r.o.logger.Warn("progress update failed", logging.String(logging.FieldJobID, r.job.ID), logging.Error(err))
	}
	if fn := r.o.onProgress; fn != nil {
		fn(Event{JobID: r.job.ID, Stage: stageName, Percent: percent, Message: message})
	}
}

// terminal emits the final event of the run. The ledger row is already
// settled by then.
func (r *reporter) terminal(state ledger.State, message string, err error) {
	r.mu.Lock()
	percent := r.percent
	if state == ledger.StateCompleted {
		percent = 100
	}
	r.mu.Unlock()

	r.publish(string(state), percent, message, true, state, err)
}

func (r *reporter) publish(stage string, percent float64, message string, terminal bool, state ledger.State, err error) {
	if fn := r.o.onProgress; fn != nil {
		fn(Event{
			JobID:    r.job.ID,
			Stage:    stage,
			Percent:  percent,
			Message:  message,
			Terminal: terminal,
			State:    state,
			Err:      err,
		})
	}
}
