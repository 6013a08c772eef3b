package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_roster",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_assessments",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_upload_audit_log",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ROSTER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS grade_levels (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    code VARCHAR(32) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS classrooms (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    code VARCHAR(32) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    grade_level_id UUID NOT NULL REFERENCES grade_levels(id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_classrooms_grade_level ON classrooms(grade_level_id, code);

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    external_id VARCHAR(64),
    full_name VARCHAR(200) NOT NULL,
    grade_level_id UUID NOT NULL REFERENCES grade_levels(id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Name matching is exact, so a plain btree on (grade, name) serves it.
CREATE INDEX IF NOT EXISTS idx_students_grade_name ON students(grade_level_id, full_name);
-- A school id names one student across the whole school.
CREATE UNIQUE INDEX IF NOT EXISTS idx_students_external_id ON students(external_id)
    WHERE external_id IS NOT NULL;
`

const migration001Down = `
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS classrooms;
DROP TABLE IF EXISTS grade_levels;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ASSESSMENTS, SCORES, WEEKLY AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS assessments (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    subject VARCHAR(16) NOT NULL,
    classroom_id UUID NOT NULL REFERENCES classrooms(id),
    week_start DATE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT assessments_natural_key UNIQUE (subject, classroom_id, week_start),
    CONSTRAINT valid_subject CHECK (subject IN ('MATH', 'READING')),
    CONSTRAINT week_start_is_monday CHECK (EXTRACT(ISODOW FROM week_start) = 1)
);

CREATE INDEX IF NOT EXISTS idx_assessments_week ON assessments(week_start);

CREATE TABLE IF NOT EXISTS scores (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id),
    assessment_id UUID NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
    score NUMERIC(5,2) NOT NULL,
    tier VARCHAR(8) NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT scores_natural_key UNIQUE (student_id, assessment_id),
    CONSTRAINT valid_score CHECK (score >= 0 AND score <= 100),
    CONSTRAINT valid_tier CHECK (tier IN ('GREEN', 'ORANGE', 'RED', 'GRAY'))
);

CREATE INDEX IF NOT EXISTS idx_scores_assessment ON scores(assessment_id);

CREATE TABLE IF NOT EXISTS weekly_aggregates (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    grade_level_id UUID NOT NULL REFERENCES grade_levels(id),
    classroom_id UUID NOT NULL REFERENCES classrooms(id),
    subject VARCHAR(16) NOT NULL,
    week_start DATE NOT NULL,
    green_count INTEGER NOT NULL DEFAULT 0,
    orange_count INTEGER NOT NULL DEFAULT 0,
    red_count INTEGER NOT NULL DEFAULT 0,
    gray_count INTEGER NOT NULL DEFAULT 0,
    total_count INTEGER NOT NULL DEFAULT 0,
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT weekly_aggregates_natural_key UNIQUE (grade_level_id, classroom_id, subject, week_start),
    CONSTRAINT non_negative_counts CHECK (
        green_count >= 0 AND orange_count >= 0 AND red_count >= 0 AND gray_count >= 0
    ),
    CONSTRAINT counts_sum_to_total CHECK (
        green_count + orange_count + red_count + gray_count = total_count
    )
);

CREATE INDEX IF NOT EXISTS idx_weekly_aggregates_grade_week
    ON weekly_aggregates(grade_level_id, week_start, subject);
`

const migration002Down = `
DROP TABLE IF EXISTS weekly_aggregates;
DROP TABLE IF EXISTS scores;
DROP TABLE IF EXISTS assessments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: UPLOAD AUDIT LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS upload_audit_log (
    id UUID PRIMARY KEY,
    user_id VARCHAR(100) NOT NULL,
    filename VARCHAR(255) NOT NULL,
    size_bytes BIGINT NOT NULL DEFAULT 0,
    checksum VARCHAR(64) NOT NULL DEFAULT '',
    row_count INTEGER NOT NULL DEFAULT 0,
    processed_count INTEGER NOT NULL DEFAULT 0,
    unmatched_count INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(16) NOT NULL,
    error_text TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('COMPLETE', 'PARTIAL', 'FAILED'))
);

CREATE INDEX IF NOT EXISTS idx_upload_audit_log_created_at ON upload_audit_log(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_upload_audit_log_user ON upload_audit_log(user_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS upload_audit_log;
`
