package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"glossa/internal/config"
	"glossa/internal/services"
)

const defaultRecentLimit = 10

// Store manages job-history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Save inserts a new job row. Zero timestamps are filled with the current
// time and an empty state defaults to pending.
func (s *Store) Save(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is empty")
	}
	if job.State == "" {
		job.State = StatePending
	}
	if !Known(job.State) {
		return fmt.Errorf("unknown job state %q", job.State)
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, source_path, title, source_language, target_language,
            detected_language, model, engine, output_mode, output_dir,
            subtitle_format, state, progress_stage, progress_percent,
            progress_message, error_message, segments_total, segments_failed,
            sidecar_path, video_path, created_at, updated_at, started_at,
            finished_at, last_heartbeat
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.SourcePath,
		job.Title,
		nullableString(job.SourceLanguage),
		job.TargetLanguage,
		nullableString(job.DetectedLanguage),
		job.Model,
		job.Engine,
		job.OutputMode,
		job.OutputDir,
		job.SubtitleFormat,
		job.State,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		job.SegmentsTotal,
		job.SegmentsFailed,
		nullableString(job.SidecarPath),
		nullableString(job.VideoPath),
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
		nullableTime(job.LastHeartbeat),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update persists changes to an existing job row.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if !Known(job.State) {
		return fmt.Errorf("unknown job state %q", job.State)
	}
	job.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET source_path = ?, title = ?, source_language = ?, target_language = ?,
             detected_language = ?, model = ?, engine = ?, output_mode = ?,
             output_dir = ?, subtitle_format = ?, state = ?, progress_stage = ?,
             progress_percent = ?, progress_message = ?, error_message = ?,
             segments_total = ?, segments_failed = ?, sidecar_path = ?,
             video_path = ?, updated_at = ?, started_at = ?, finished_at = ?,
             last_heartbeat = ?
         WHERE id = ?`,
		job.SourcePath,
		job.Title,
		nullableString(job.SourceLanguage),
		job.TargetLanguage,
		nullableString(job.DetectedLanguage),
		job.Model,
		job.Engine,
		job.OutputMode,
		job.OutputDir,
		job.SubtitleFormat,
		job.State,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		job.SegmentsTotal,
		job.SegmentsFailed,
		nullableString(job.SidecarPath),
		nullableString(job.VideoPath),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
		nullableTime(job.LastHeartbeat),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "update job", fmt.Sprintf("no job with id %s", job.ID), nil)
	}
	return nil
}

// UpdateProgress stores the latest progress snapshot without rewriting the
// whole row.
func (s *Store) UpdateProgress(ctx context.Context, id, stage string, percent float64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(stage),
		percent,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// UpdateHeartbeat touches the heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "get job", fmt.Sprintf("no job with id %s", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Recent returns the newest jobs first. A non-positive limit selects the
// default page size.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Active returns the job currently pending or processing, or nil when the
// pipeline is idle. The orchestrator's busy gate keeps this at most one.
func (s *Store) Active(ctx context.Context) (*Job, error) {
	states := append([]State{StatePending}, processingStates...)
	placeholders := makePlaceholders(len(states))
	args := make([]any, len(states))
	for i, state := range states {
		args[i] = state
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE state IN (`+placeholders+`) ORDER BY created_at DESC LIMIT 1`,
		args...,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active job: %w", err)
	}
	return job, nil
}

// RecoverInterrupted marks jobs a dead process left mid-flight as failed.
// Called once at daemon startup, before any new submission.
func (s *Store) RecoverInterrupted(ctx context.Context) (int64, error) {
	states := append([]State{StatePending}, processingStates...)
	placeholders := makePlaceholders(len(states))
	now := time.Now().UTC().Format(time.RFC3339Nano)
	args := make([]any, 0, len(states)+4)
	args = append(args, StateFailed, InterruptedMessage, now, now)
	for _, state := range states {
		args = append(args, state)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET state = ?, error_message = ?, progress_message = NULL,
             last_heartbeat = NULL, finished_at = ?, updated_at = ?
         WHERE state IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// Health aggregates database diagnostics and per-state counts.
func (s *Store) Health(ctx context.Context) (Health, error) {
	health := Health{Path: s.path}

	if s.db == nil {
		return health, errors.New("ledger database connection unavailable")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return health, fmt.Errorf("ping ledger database: %w", err)
	}
	health.Readable = true

	var integrity string
	if err := s.db.QueryRowContext(pingCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityOK = strings.EqualFold(integrity, "ok")

	stats, err := s.Stats(ctx)
	if err != nil {
		return health, err
	}
	health.StateCounts = stats
	for _, count := range stats {
		health.TotalJobs += count
	}

	active, err := s.Active(ctx)
	if err != nil {
		return health, err
	}
	if active != nil {
		health.ActiveJobID = active.ID
	}
	return health, nil
}

const jobColumns = "id, source_path, title, source_language, target_language, detected_language, model, engine, output_mode, output_dir, subtitle_format, state, progress_stage, progress_percent, progress_message, error_message, segments_total, segments_failed, sidecar_path, video_path, created_at, updated_at, started_at, finished_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               string
		sourcePath       string
		title            string
		sourceLanguage   sql.NullString
		targetLanguage   string
		detectedLanguage sql.NullString
		model            string
		engine           string
		outputMode       string
		outputDir        string
		subtitleFormat   string
		stateStr         string
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		errorMessage     sql.NullString
		segmentsTotal    sql.NullInt64
		segmentsFailed   sql.NullInt64
		sidecarPath      sql.NullString
		videoPath        sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		startedRaw       sql.NullString
		finishedRaw      sql.NullString
		heartbeatRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&title,
		&sourceLanguage,
		&targetLanguage,
		&detectedLanguage,
		&model,
		&engine,
		&outputMode,
		&outputDir,
		&subtitleFormat,
		&stateStr,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&segmentsTotal,
		&segmentsFailed,
		&sidecarPath,
		&videoPath,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		SourcePath:       sourcePath,
		Title:            title,
		SourceLanguage:   sourceLanguage.String,
		TargetLanguage:   targetLanguage,
		DetectedLanguage: detectedLanguage.String,
		Model:            model,
		Engine:           engine,
		OutputMode:       outputMode,
		OutputDir:        outputDir,
		SubtitleFormat:   subtitleFormat,
		State:            State(stateStr),
		ProgressStage:    progressStage.String,
		ProgressPercent:  progressPercent.Float64,
		ProgressMessage:  progressMessage.String,
		ErrorMessage:     errorMessage.String,
		SegmentsTotal:    int(segmentsTotal.Int64),
		SegmentsFailed:   int(segmentsFailed.Int64),
		SidecarPath:      sidecarPath.String,
		VideoPath:        videoPath.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
