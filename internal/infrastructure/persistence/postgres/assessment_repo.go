package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GROUP STORE
// One transaction per group. The transaction takes a transaction-scoped
// advisory lock on the group key, so uploads touching the same group
// serialize while other groups run freely.
// ══════════════════════════════════════════════════════════════════════════════

// GroupStore implements assessment.GroupStore for PostgreSQL.
type GroupStore struct {
	conn *Connection
}

// NewGroupStore creates a new GroupStore.
func NewGroupStore(conn *Connection) *GroupStore {
	return &GroupStore{conn: conn}
}

var _ assessment.GroupStore = (*GroupStore)(nil)

// WithinGroup runs fn inside the group's transaction. An error from fn rolls
// back every write of the section.
func (s *GroupStore) WithinGroup(ctx context.Context, key assessment.GroupKey, fn func(ctx context.Context, w assessment.GroupWriter) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
			return fmt.Errorf("postgres: lock group %s: %w", key, err)
		}
		return fn(ctx, &txWriter{tx: tx})
	})
}

// ListGroupKeys returns the key of every assessment from since onwards.
func (s *GroupStore) ListGroupKeys(ctx context.Context, since time.Time) ([]assessment.GroupKey, error) {
	query := `
		SELECT c.grade_level_id, a.classroom_id, a.subject, a.week_start
		FROM assessments a
		JOIN classrooms c ON c.id = a.classroom_id
		WHERE a.week_start >= $1
		ORDER BY a.week_start, a.classroom_id, a.subject
	`

	rows, err := s.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list group keys: %w", err)
	}
	defer rows.Close()

	var keys []assessment.GroupKey
	for rows.Next() {
		var k assessment.GroupKey
		var subject string
		if err := rows.Scan(&k.GradeLevelID, &k.ClassroomID, &subject, &k.WeekStart); err != nil {
			return nil, fmt.Errorf("postgres: scan group key: %w", err)
		}
		k.Subject = assessment.Subject(subject)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Group writer
// ─────────────────────────────────────────────────────────────────────────────

type txWriter struct {
	tx pgx.Tx
}

func (w *txWriter) UpsertAssessment(ctx context.Context, key assessment.GroupKey) (*assessment.Assessment, error) {
	query := `
		INSERT INTO assessments (subject, classroom_id, week_start)
		VALUES ($1, $2, $3)
		ON CONFLICT (subject, classroom_id, week_start)
		DO UPDATE SET updated_at = NOW()
		RETURNING id, subject, classroom_id, week_start, created_at, updated_at
	`
	a, err := scanAssessment(w.tx.QueryRow(ctx, query, string(key.Subject), key.ClassroomID, key.WeekStart))
	if err != nil {
		return nil, fmt.Errorf("postgres: upsert assessment: %w", err)
	}
	return a, nil
}

func (w *txWriter) FindAssessment(ctx context.Context, key assessment.GroupKey) (*assessment.Assessment, error) {
	query := `
		SELECT id, subject, classroom_id, week_start, created_at, updated_at
		FROM assessments
		WHERE subject = $1 AND classroom_id = $2 AND week_start = $3
	`
	a, err := scanAssessment(w.tx.QueryRow(ctx, query, string(key.Subject), key.ClassroomID, key.WeekStart))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("postgres: find assessment: %w", err)
	}
	return a, nil
}

// UpsertScore runs under a savepoint so a failing row leaves the transaction
// usable for the rest of the group.
func (w *txWriter) UpsertScore(ctx context.Context, rec *assessment.ScoreRecord) error {
	if _, err := w.tx.Exec(ctx, `SAVEPOINT score`); err != nil {
		return fmt.Errorf("postgres: savepoint: %w", err)
	}

	query := `
		INSERT INTO scores (student_id, assessment_id, score, tier)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, assessment_id)
		DO UPDATE SET score = EXCLUDED.score, tier = EXCLUDED.tier, updated_at = NOW()
		RETURNING id, updated_at
	`
	err := w.tx.QueryRow(ctx, query, rec.StudentID, rec.AssessmentID, rec.Score, string(rec.Tier)).
		Scan(&rec.ID, &rec.UpdatedAt)
	if err != nil {
		if _, rbErr := w.tx.Exec(ctx, `ROLLBACK TO SAVEPOINT score`); rbErr != nil {
			return fmt.Errorf("postgres: upsert score: %v, rollback to savepoint: %w", err, rbErr)
		}
		if IsForeignKeyViolation(err) || IsCheckViolation(err) {
			return shared.WrapError("assessment", "UpsertScore", shared.ErrConflict, "score violates a table constraint", err)
		}
		return fmt.Errorf("postgres: upsert score: %w", err)
	}

	if _, err := w.tx.Exec(ctx, `RELEASE SAVEPOINT score`); err != nil {
		return fmt.Errorf("postgres: release savepoint: %w", err)
	}
	return nil
}

func (w *txWriter) ListScores(ctx context.Context, assessmentID string) ([]*assessment.ScoreRecord, error) {
	query := `
		SELECT id, student_id, assessment_id, score::float8, tier, updated_at
		FROM scores
		WHERE assessment_id = $1
		ORDER BY student_id
	`

	rows, err := w.tx.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scores: %w", err)
	}
	defer rows.Close()

	var out []*assessment.ScoreRecord
	for rows.Next() {
		var rec assessment.ScoreRecord
		var tier string
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.AssessmentID, &rec.Score, &tier, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan score: %w", err)
		}
		rec.Tier = assessment.Tier(tier)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (w *txWriter) UpsertAggregate(ctx context.Context, agg *assessment.WeeklyAggregate) error {
	if err := agg.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO weekly_aggregates (
			grade_level_id, classroom_id, subject, week_start,
			green_count, orange_count, red_count, gray_count, total_count, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (grade_level_id, classroom_id, subject, week_start)
		DO UPDATE SET
			green_count = EXCLUDED.green_count,
			orange_count = EXCLUDED.orange_count,
			red_count = EXCLUDED.red_count,
			gray_count = EXCLUDED.gray_count,
			total_count = EXCLUDED.total_count,
			computed_at = EXCLUDED.computed_at
		RETURNING id
	`
	err := w.tx.QueryRow(ctx, query,
		agg.GradeLevelID,
		agg.ClassroomID,
		string(agg.Subject),
		agg.WeekStart,
		agg.Green,
		agg.Orange,
		agg.Red,
		agg.Gray,
		agg.Total,
		agg.ComputedAt,
	).Scan(&agg.ID)
	if err != nil {
		return fmt.Errorf("postgres: upsert aggregate: %w", err)
	}
	return nil
}

func scanAssessment(row pgx.Row) (*assessment.Assessment, error) {
	var a assessment.Assessment
	var subject string
	if err := row.Scan(&a.ID, &subject, &a.ClassroomID, &a.WeekStart, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Subject = assessment.Subject(subject)
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE READER
// ══════════════════════════════════════════════════════════════════════════════

// AggregateReader implements assessment.AggregateReader for PostgreSQL.
type AggregateReader struct {
	conn *Connection
}

// NewAggregateReader creates a new AggregateReader.
func NewAggregateReader(conn *Connection) *AggregateReader {
	return &AggregateReader{conn: conn}
}

var _ assessment.AggregateReader = (*AggregateReader)(nil)

// ListAggregates returns the aggregates matching f. Empty filter fields are
// passed as NULL and match everything.
func (r *AggregateReader) ListAggregates(ctx context.Context, f assessment.AggregateFilter) ([]*assessment.WeeklyAggregate, error) {
	query := `
		SELECT id, grade_level_id, classroom_id, subject, week_start,
			   green_count, orange_count, red_count, gray_count, total_count, computed_at
		FROM weekly_aggregates
		WHERE ($1::uuid IS NULL OR grade_level_id = $1)
		  AND ($2::uuid IS NULL OR classroom_id = $2)
		  AND ($3::text IS NULL OR subject = $3)
		  AND ($4::date IS NULL OR week_start >= $4)
		  AND ($5::date IS NULL OR week_start <= $5)
		ORDER BY week_start, classroom_id, subject
	`

	rows, err := r.conn.Query(ctx, query,
		nullString(f.GradeLevelID),
		nullString(f.ClassroomID),
		nullString(string(f.Subject)),
		nullTime(f.From),
		nullTime(f.To),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list aggregates: %w", err)
	}
	defer rows.Close()

	var out []*assessment.WeeklyAggregate
	for rows.Next() {
		var a assessment.WeeklyAggregate
		var subject string
		err := rows.Scan(
			&a.ID, &a.GradeLevelID, &a.ClassroomID, &subject, &a.WeekStart,
			&a.Green, &a.Orange, &a.Red, &a.Gray, &a.Total, &a.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan aggregate: %w", err)
		}
		a.Subject = assessment.Subject(subject)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// LatestWeek returns the newest week start with an aggregate for the grade.
func (r *AggregateReader) LatestWeek(ctx context.Context, gradeLevelID string) (time.Time, error) {
	var latest *time.Time
	err := r.conn.QueryRow(ctx,
		`SELECT MAX(week_start) FROM weekly_aggregates WHERE grade_level_id = $1`,
		gradeLevelID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: latest week: %w", err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
