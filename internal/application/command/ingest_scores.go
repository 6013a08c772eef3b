// Package command contains write operations (CQRS - Commands).
package command

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGEST SCORES COMMAND
// Runs one uploaded workbook through the pipeline:
//   PARSED -> VALIDATED -> GROUPED -> per group MATCHED -> SCORED -> AGGREGATED
//   -> AUDIT_LOGGED -> COMPLETE | PARTIAL | FAILED
// Row-level problems are collected and the batch moves on. Only an unreadable
// file stops it. Nothing is retried; every write is an upsert, so the caller
// can simply upload the same file again.
// ══════════════════════════════════════════════════════════════════════════════

// WorkbookReader turns an uploaded file into raw rows. It returns
// *upload.FileFormatError for files it cannot read.
type WorkbookReader interface {
	ReadRows(ctx context.Context, r io.Reader) ([]upload.RawRow, error)
}

// CacheInvalidator drops cached dashboard reads.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// IngestScoresCommand carries one uploaded workbook.
type IngestScoresCommand struct {
	// UserID identifies the uploader for the audit log.
	UserID string

	// Filename is the client-side file name.
	Filename string

	// Content is the raw workbook.
	Content []byte
}

// Validate validates the command.
func (c IngestScoresCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("ingest_scores: user_id is required")
	}
	return nil
}

// IngestScoresHandler handles IngestScoresCommand.
type IngestScoresHandler struct {
	reader     WorkbookReader
	validator  *RowValidator
	matcher    *StudentMatcher
	classrooms roster.ClassroomRepository
	grades     roster.GradeLevelRepository
	store      assessment.GroupStore
	audit      upload.AuditLog
	cache      CacheInvalidator
	log        *logger.Logger

	// Configuration
	groupConcurrency int
	maxRows          int
	now              func() time.Time
}

// IngestScoresHandlerConfig contains configuration for the handler.
type IngestScoresHandlerConfig struct {
	// GroupConcurrency bounds how many groups are written at once.
	GroupConcurrency int

	// MaxRows rejects workbooks with more data rows than this.
	MaxRows int
}

// DefaultIngestScoresHandlerConfig returns default configuration.
func DefaultIngestScoresHandlerConfig() IngestScoresHandlerConfig {
	return IngestScoresHandlerConfig{
		GroupConcurrency: 1,
		MaxRows:          5000,
	}
}

// NewIngestScoresHandler creates a new IngestScoresHandler. cache may be nil.
func NewIngestScoresHandler(
	reader WorkbookReader,
	directory roster.Directory,
	classrooms roster.ClassroomRepository,
	grades roster.GradeLevelRepository,
	store assessment.GroupStore,
	audit upload.AuditLog,
	cache CacheInvalidator,
	log *logger.Logger,
	config IngestScoresHandlerConfig,
) *IngestScoresHandler {
	defaults := DefaultIngestScoresHandlerConfig()
	if config.GroupConcurrency <= 0 {
		config.GroupConcurrency = defaults.GroupConcurrency
	}
	if config.MaxRows <= 0 {
		config.MaxRows = defaults.MaxRows
	}
	if log == nil {
		log = logger.Default()
	}

	return &IngestScoresHandler{
		reader:           reader,
		validator:        NewRowValidator(),
		matcher:          NewStudentMatcher(directory),
		classrooms:       classrooms,
		grades:           grades,
		store:            store,
		audit:            audit,
		cache:            cache,
		log:              log.With(logger.Component("ingest_scores")),
		groupConcurrency: config.GroupConcurrency,
		maxRows:          config.MaxRows,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// ─── Grouping ───────────────────────────────────────────────────────────────

// rowGroupKey groups validated rows before classrooms are resolved.
type rowGroupKey struct {
	weekStart     time.Time
	classroomCode string
	subject       assessment.Subject
}

func (k rowGroupKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.classroomCode, k.subject, timeutil.FormatDate(k.weekStart))
}

// groupJob is one group ready for its critical section.
type groupJob struct {
	key       rowGroupKey
	rows      []*ScoreRow
	classroom *roster.Classroom
	grade     *roster.GradeLevel

	// resolveErr is set when the classroom could not be resolved; every
	// row of the group then fails with it.
	resolveErr func(row *ScoreRow) error
}

func (j *groupJob) groupKey() assessment.GroupKey {
	return assessment.GroupKey{
		GradeLevelID: j.grade.ID,
		ClassroomID:  j.classroom.ID,
		Subject:      j.key.subject,
		WeekStart:    j.key.weekStart,
	}
}

type matchedRow struct {
	row     *ScoreRow
	student *roster.Student
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLE
// ══════════════════════════════════════════════════════════════════════════════

// Handle runs the pipeline. The returned error is reserved for an invalid
// command; every ingestion outcome, including a failed batch, is reported in
// the result.
func (h *IngestScoresHandler) Handle(ctx context.Context, cmd IngestScoresCommand) (*upload.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	sum := blake2b.Sum256(cmd.Content)
	batch := upload.NewBatch(uuid.NewString(), cmd.UserID, cmd.Filename,
		int64(len(cmd.Content)), hex.EncodeToString(sum[:]), h.now())

	log := h.log.With(logger.UploadID(batch.ID), logger.UserID(cmd.UserID), logger.Filename(cmd.Filename))
	ctx = logger.WithContext(ctx, log)

	// PARSED
	raws, ffErr := h.parse(ctx, cmd.Content)
	if ffErr != nil {
		batch.Abort(ffErr)
		log.Warn("upload rejected", logger.Err(ffErr))
		return h.finish(ctx, batch, start), nil
	}
	batch.SetRowCount(len(raws))
	h.advance(batch, upload.StageParsed)

	// VALIDATED
	valid := make([]*ScoreRow, 0, len(raws))
	for _, raw := range raws {
		row, err := h.validator.Validate(raw)
		if err != nil {
			batch.RecordRowError(err)
			continue
		}
		valid = append(valid, row)
	}
	h.advance(batch, upload.StageValidated)

	// GROUPED
	jobs := h.group(ctx, valid)
	h.advance(batch, upload.StageGrouped)

	// Per group: MATCHED -> SCORED -> AGGREGATED
	outcomes := make([]*upload.GroupOutcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.groupConcurrency)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = h.processGroup(gctx, job)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		batch.Merge(out)
	}
	h.advance(batch, upload.StageAggregated)

	return h.finish(ctx, batch, start), nil
}

// parse reads the workbook and enforces the row limit.
func (h *IngestScoresHandler) parse(ctx context.Context, content []byte) ([]upload.RawRow, *upload.FileFormatError) {
	if len(content) == 0 {
		return nil, upload.NewFileFormatError("file is empty", nil)
	}

	raws, err := h.reader.ReadRows(ctx, bytes.NewReader(content))
	if err != nil {
		var ffErr *upload.FileFormatError
		if errors.As(err, &ffErr) {
			return nil, ffErr
		}
		return nil, upload.NewFileFormatError("workbook could not be read", err)
	}

	if len(raws) == 0 {
		return nil, upload.NewFileFormatError("workbook has no data rows", nil)
	}
	if len(raws) > h.maxRows {
		return nil, upload.NewFileFormatError(
			fmt.Sprintf("workbook has %d data rows, the limit is %d", len(raws), h.maxRows), nil)
	}
	return raws, nil
}

// group buckets rows by (week, classroom, subject) in file order and resolves
// each distinct classroom once. Jobs come back sorted by key.
func (h *IngestScoresHandler) group(ctx context.Context, rows []*ScoreRow) []*groupJob {
	byKey := make(map[rowGroupKey]*groupJob)
	for _, row := range rows {
		k := rowGroupKey{weekStart: row.WeekStart, classroomCode: row.ClassroomCode, subject: row.Subject}
		job, ok := byKey[k]
		if !ok {
			job = &groupJob{key: k}
			byKey[k] = job
		}
		job.rows = append(job.rows, row)
	}

	type resolved struct {
		classroom *roster.Classroom
		grade     *roster.GradeLevel
		err       func(row *ScoreRow) error
	}
	rooms := make(map[string]resolved)

	jobs := make([]*groupJob, 0, len(byKey))
	for _, job := range byKey {
		code := job.key.classroomCode
		r, ok := rooms[code]
		if !ok {
			c, g, errFn := h.resolveClassroom(ctx, code)
			r = resolved{classroom: c, grade: g, err: errFn}
			rooms[code] = r
		}
		job.classroom, job.grade, job.resolveErr = r.classroom, r.grade, r.err
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i].key, jobs[j].key
		if !a.weekStart.Equal(b.weekStart) {
			return a.weekStart.Before(b.weekStart)
		}
		if a.classroomCode != b.classroomCode {
			return a.classroomCode < b.classroomCode
		}
		return a.subject < b.subject
	})
	return jobs
}

func (h *IngestScoresHandler) resolveClassroom(ctx context.Context, code string) (*roster.Classroom, *roster.GradeLevel, func(*ScoreRow) error) {
	classroom, err := h.classrooms.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil, func(row *ScoreRow) error {
				return &upload.RowValidationError{Row: row.Number, Fields: []upload.FieldError{{
					Field:   upload.ColumnClassroomCode,
					Message: fmt.Sprintf("ClassroomCode %s was not found", code),
				}}}
			}
		}
		return nil, nil, func(row *ScoreRow) error {
			return &upload.PersistenceError{Row: row.Number, Op: "classroom lookup", Err: err}
		}
	}

	grade, err := h.grades.GetByID(ctx, classroom.GradeLevelID)
	if err != nil {
		return nil, nil, func(row *ScoreRow) error {
			return &upload.PersistenceError{Row: row.Number, Op: "grade level lookup", Err: err}
		}
	}
	return classroom, grade, nil
}

// processGroup runs one group through MATCHED -> SCORED -> AGGREGATED.
func (h *IngestScoresHandler) processGroup(ctx context.Context, job *groupJob) *upload.GroupOutcome {
	out := upload.NewGroupOutcome(job.key.String())
	log := logger.FromContext(ctx).With(
		logger.Classroom(job.key.classroomCode),
		logger.Subject(job.key.subject.String()),
		logger.WeekStart(job.key.weekStart),
	)

	if job.resolveErr != nil {
		for _, row := range job.rows {
			out.Record(job.resolveErr(row))
		}
		return out
	}

	// MATCHED
	matched := make([]matchedRow, 0, len(job.rows))
	for _, row := range job.rows {
		if row.GradeLevel != "" && !job.grade.Matches(row.GradeLevel) {
			out.Record(&upload.RowValidationError{Row: row.Number, Fields: []upload.FieldError{{
				Field:   upload.ColumnGradeLevel,
				Message: fmt.Sprintf("GradeLevel %s does not match classroom %s", row.GradeLevel, job.classroom.Code),
			}}})
			continue
		}

		m, err := h.matcher.Match(ctx, row, job.grade)
		if err != nil {
			out.Record(err)
			continue
		}
		matched = append(matched, matchedRow{row: row, student: m.Student})
	}
	_ = out.Advance(upload.GroupMatched)

	if len(matched) == 0 {
		_ = out.Advance(upload.GroupScored)
		_ = out.Advance(upload.GroupAggregated)
		return out
	}

	// SCORED -> AGGREGATED, inside the group's critical section.
	key := job.groupKey()
	var rowErrs []error
	written := 0
	err := h.store.WithinGroup(ctx, key, func(ctx context.Context, w assessment.GroupWriter) error {
		rowErrs, written = rowErrs[:0], 0

		a, err := w.UpsertAssessment(ctx, key)
		if err != nil {
			return fmt.Errorf("upsert assessment: %w", err)
		}

		for _, m := range matched {
			rec, err := assessment.NewScoreRecord(m.student.ID, a.ID, m.row.Score)
			if err == nil {
				err = w.UpsertScore(ctx, rec)
			}
			if err != nil {
				rowErrs = append(rowErrs, &upload.PersistenceError{Row: m.row.Number, Op: "score", Err: err})
				continue
			}
			written++
		}

		if _, err := RecomputeGroup(ctx, w, key, a.ID, h.now()); err != nil {
			return err
		}
		return nil
	})

	_ = out.Advance(upload.GroupScored)

	if err != nil {
		// The section's writes are discarded; none of the group's scores count.
		log.Error("group write failed", logger.Err(err))
		out.Record(&upload.PersistenceError{
			Op:  fmt.Sprintf("group %s (%d rows)", job.key, len(matched)),
			Err: err,
		})
		return out
	}

	for _, e := range rowErrs {
		out.Record(e)
	}
	out.Processed = written
	_ = out.Advance(upload.GroupAggregated)

	log.Debug("group ingested", logger.Int("written", written), logger.Int("rows", len(job.rows)))
	return out
}

// finish concludes the batch, writes the audit entry and invalidates cached
// dashboards. It runs even when the request context is gone so the attempt
// is always recorded.
func (h *IngestScoresHandler) finish(ctx context.Context, batch *upload.Batch, start time.Time) *upload.Result {
	log := logger.FromContext(ctx)
	ctx = context.WithoutCancel(ctx)

	status := batch.Conclude()

	if err := h.audit.Append(ctx, batch.AuditEntry(h.now())); err != nil {
		log.Error("audit append failed", logger.Err(err))
	}
	h.advance(batch, upload.StageAuditLogged)

	if batch.Processed() > 0 && h.cache != nil {
		if err := h.cache.InvalidateAll(ctx); err != nil {
			log.Warn("dashboard cache invalidation failed", logger.Err(err))
		}
	}

	log.Info("upload processed",
		logger.Status(string(status)),
		logger.Int("rows", batch.RowCount()),
		logger.Int("processed", batch.Processed()),
		logger.Int("errors", len(batch.Errors())),
		logger.Int("unmatched", len(batch.Unmatched())),
		logger.Latency(time.Since(start)),
	)
	return batch.Result()
}

// advance moves the batch forward. The pipeline only ever asks for the next
// stage, so a failure here is a bug worth logging, not a batch error.
func (h *IngestScoresHandler) advance(batch *upload.Batch, to upload.Stage) {
	if err := batch.Advance(to); err != nil {
		h.log.Error("batch stage transition rejected", logger.UploadID(batch.ID), logger.Err(err))
	}
}
