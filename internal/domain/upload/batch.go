package upload

import (
	"errors"
	"fmt"
	"time"

	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the terminal outcome of a batch.
type Status string

const (
	// StatusComplete: at least one score written, no errors, no unmatched rows.
	StatusComplete Status = "COMPLETE"
	// StatusPartial: at least one score written, some rows failed or were unmatched.
	StatusPartial Status = "PARTIAL"
	// StatusFailed: nothing written, or the file could not be read.
	StatusFailed Status = "FAILED"
)

// IsValid checks if the status is a known terminal status.
func (s Status) IsValid() bool {
	return s == StatusComplete || s == StatusPartial || s == StatusFailed
}

// ══════════════════════════════════════════════════════════════════════════════
// STAGES
// ══════════════════════════════════════════════════════════════════════════════

// Stage is a batch-level step.
type Stage string

const (
	StageReceived    Stage = "RECEIVED"
	StageParsed      Stage = "PARSED"
	StageValidated   Stage = "VALIDATED"
	StageGrouped     Stage = "GROUPED"
	StageAggregated  Stage = "AGGREGATED" // every group finished
	StageAuditLogged Stage = "AUDIT_LOGGED"
)

var batchTransitions = map[Stage]Stage{
	StageReceived:   StageParsed,
	StageParsed:     StageValidated,
	StageValidated:  StageGrouped,
	StageGrouped:    StageAggregated,
	StageAggregated: StageAuditLogged,
}

// GroupStage is a step inside one (classroom, subject, week) group.
type GroupStage string

const (
	GroupPending    GroupStage = "PENDING"
	GroupMatched    GroupStage = "MATCHED"
	GroupScored     GroupStage = "SCORED"
	GroupAggregated GroupStage = "AGGREGATED"
)

var groupTransitions = map[GroupStage]GroupStage{
	GroupPending: GroupMatched,
	GroupMatched: GroupScored,
	GroupScored:  GroupAggregated,
}

// NoScoresWritten explains a failed batch that has no other error to report.
const NoScoresWritten = "no scores were written"

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

// UnmatchedStudent is a row whose student could not be resolved.
type UnmatchedStudent struct {
	Name      string `json:"name"`
	Grade     string `json:"grade"`
	Classroom string `json:"classroom"`
}

// Result is what the uploader gets back.
type Result struct {
	UploadID          string             `json:"uploadId"`
	Status            Status             `json:"status"`
	Success           bool               `json:"success"`
	RowCount          int                `json:"rowCount"`
	ProcessedCount    int                `json:"processedCount"`
	Errors            []string           `json:"errors"`
	UnmatchedStudents []UnmatchedStudent `json:"unmatchedStudents"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// GroupOutcome accumulates what happened inside one group. Each group is
// processed by a single goroutine, so it needs no locking.
type GroupOutcome struct {
	Label     string
	Stage     GroupStage
	Processed int
	Errors    []string
	Unmatched []UnmatchedStudent
}

// NewGroupOutcome starts a group in the pending stage.
func NewGroupOutcome(label string) *GroupOutcome {
	return &GroupOutcome{Label: label, Stage: GroupPending}
}

// Advance moves the group to its next stage. Skipping a stage is an error.
func (g *GroupOutcome) Advance(to GroupStage) error {
	if next, ok := groupTransitions[g.Stage]; !ok || next != to {
		return shared.WrapError("upload", "AdvanceGroup", shared.ErrStateTransition,
			fmt.Sprintf("group %s: %s -> %s", g.Label, g.Stage, to), nil)
	}
	g.Stage = to
	return nil
}

// Record classifies err into the group's errors or unmatched list.
func (g *GroupOutcome) Record(err error) {
	var notFound *StudentNotFoundError
	if errors.As(err, &notFound) {
		g.Unmatched = append(g.Unmatched, notFound.Unmatched())
		return
	}
	g.Errors = append(g.Errors, err.Error())
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH
// ══════════════════════════════════════════════════════════════════════════════

// Batch tracks one upload through its stages and accumulates the result.
// A Batch is driven by a single goroutine.
type Batch struct {
	ID        string
	UserID    string
	Filename  string
	SizeBytes int64
	Checksum  string
	StartedAt time.Time

	stage     Stage
	aborted   bool
	rowCount  int
	processed int
	errors    []string
	unmatched []UnmatchedStudent
}

// NewBatch starts a batch in the received stage.
func NewBatch(id, userID, filename string, size int64, checksum string, now time.Time) *Batch {
	return &Batch{
		ID:        id,
		UserID:    userID,
		Filename:  filename,
		SizeBytes: size,
		Checksum:  checksum,
		StartedAt: now,
		stage:     StageReceived,
		errors:    []string{},
		unmatched: []UnmatchedStudent{},
	}
}

// Stage returns the current stage.
func (b *Batch) Stage() Stage { return b.stage }

// Advance moves the batch to its next stage.
func (b *Batch) Advance(to Stage) error {
	if b.stage == StageAuditLogged {
		return shared.ErrBatchFinished
	}
	if to == StageAuditLogged && b.aborted {
		b.stage = to
		return nil
	}
	if next, ok := batchTransitions[b.stage]; !ok || next != to {
		return shared.WrapError("upload", "Advance", shared.ErrStateTransition,
			fmt.Sprintf("%s -> %s", b.stage, to), nil)
	}
	b.stage = to
	return nil
}

// Abort records a fatal file error. The batch can then only be audit-logged.
func (b *Batch) Abort(err *FileFormatError) {
	b.aborted = true
	b.errors = append(b.errors, err.Error())
}

// Aborted reports whether a fatal error stopped the batch.
func (b *Batch) Aborted() bool { return b.aborted }

// SetRowCount records how many data rows the workbook held.
func (b *Batch) SetRowCount(n int) { b.rowCount = n }

// RowCount returns the number of data rows read.
func (b *Batch) RowCount() int { return b.rowCount }

// RecordRowError adds a row-level error (validation or persistence).
func (b *Batch) RecordRowError(err error) {
	b.errors = append(b.errors, err.Error())
}

// Merge folds a finished group into the batch.
func (b *Batch) Merge(g *GroupOutcome) {
	b.processed += g.Processed
	b.errors = append(b.errors, g.Errors...)
	b.unmatched = append(b.unmatched, g.Unmatched...)
}

// Processed returns how many score records were written.
func (b *Batch) Processed() int { return b.processed }

// Errors returns the recorded error strings.
func (b *Batch) Errors() []string { return b.errors }

// Unmatched returns the unmatched students.
func (b *Batch) Unmatched() []UnmatchedStudent { return b.unmatched }

// Status derives the terminal status from what was recorded.
func (b *Batch) Status() Status {
	switch {
	case b.aborted || b.processed == 0:
		return StatusFailed
	case len(b.errors) == 0 && len(b.unmatched) == 0:
		return StatusComplete
	default:
		return StatusPartial
	}
}

// Conclude finalises the error list: a failed batch always says why.
func (b *Batch) Conclude() Status {
	status := b.Status()
	if status == StatusFailed && len(b.errors) == 0 {
		b.errors = append(b.errors, NoScoresWritten)
	}
	return status
}

// Result returns the caller-facing result.
func (b *Batch) Result() *Result {
	status := b.Status()
	return &Result{
		UploadID:          b.ID,
		Status:            status,
		Success:           status != StatusFailed,
		RowCount:          b.rowCount,
		ProcessedCount:    b.processed,
		Errors:            append([]string{}, b.errors...),
		UnmatchedStudents: append([]UnmatchedStudent{}, b.unmatched...),
	}
}
