// Package assessment contains the weekly assessment model: assessments,
// score records, tiers and the weekly aggregates derived from them.
package assessment

import (
	"fmt"
	"math"
	"time"

	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GROUP KEY
// ══════════════════════════════════════════════════════════════════════════════

// GroupKey identifies one (grade, classroom, subject, week) unit. It is the
// key of an assessment (classroom, subject, week) and of its aggregate
// (grade, classroom, subject, week); a classroom belongs to one grade, so
// both keys name the same group.
type GroupKey struct {
	GradeLevelID string
	ClassroomID  string
	Subject      Subject
	WeekStart    time.Time
}

// String returns a stable textual form, used for advisory locks and logs.
func (k GroupKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.ClassroomID, k.Subject, k.WeekStart.Format("2006-01-02"))
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

// Assessment is one subject tested in one classroom in one week.
type Assessment struct {
	ID          string
	Subject     Subject
	ClassroomID string
	WeekStart   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// ScoreRecord is one student's result on one assessment.
type ScoreRecord struct {
	ID           string
	StudentID    string
	AssessmentID string
	Score        float64
	Tier         Tier
	UpdatedAt    time.Time
}

// RoundScore rounds a score to the two decimals the scores table keeps.
// Classification always runs on the rounded value so a score reads back
// with the tier it was stored with.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

// NewScoreRecord validates the score, rounds it to two decimals and derives
// its tier.
func NewScoreRecord(studentID, assessmentID string, score float64) (*ScoreRecord, error) {
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return nil, shared.ErrScoreOutOfRange
	}
	score = RoundScore(score)
	return &ScoreRecord{
		StudentID:    studentID,
		AssessmentID: assessmentID,
		Score:        score,
		Tier:         Classify(score),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TIER COUNTS
// ══════════════════════════════════════════════════════════════════════════════

// TierCounts is the number of students per tier.
type TierCounts struct {
	Green  int `json:"green"`
	Orange int `json:"orange"`
	Red    int `json:"red"`
	Gray   int `json:"gray"`
	Total  int `json:"total"`
}

// Add counts one student in tier t.
func (c *TierCounts) Add(t Tier) {
	switch t {
	case TierGreen:
		c.Green++
	case TierOrange:
		c.Orange++
	case TierRed:
		c.Red++
	case TierGray:
		c.Gray++
	default:
		return
	}
	c.Total++
}

// Merge adds another set of counts into c.
func (c *TierCounts) Merge(o TierCounts) {
	c.Green += o.Green
	c.Orange += o.Orange
	c.Red += o.Red
	c.Gray += o.Gray
	c.Total += o.Total
}

// Count returns the count for tier t.
func (c TierCounts) Count(t Tier) int {
	switch t {
	case TierGreen:
		return c.Green
	case TierOrange:
		return c.Orange
	case TierRed:
		return c.Red
	case TierGray:
		return c.Gray
	}
	return 0
}

// Percent returns tier t's share of the total, one decimal place.
func (c TierCounts) Percent(t Tier) float64 {
	return shared.Percentage(c.Count(t), c.Total)
}

// Validate checks that the counts are non-negative and sum to the total.
func (c TierCounts) Validate() error {
	if c.Green < 0 || c.Orange < 0 || c.Red < 0 || c.Gray < 0 {
		return shared.NewDomainError("assessment", "Validate", shared.ErrValueOutOfRange, "tier counts cannot be negative")
	}
	if c.Green+c.Orange+c.Red+c.Gray != c.Total {
		return shared.ErrAggregateMismatch
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyAggregate is the derived tier distribution of one group. It is only
// ever produced by a full recount of the group's score records.
type WeeklyAggregate struct {
	ID           string
	GradeLevelID string
	ClassroomID  string
	Subject      Subject
	WeekStart    time.Time
	TierCounts
	ComputedAt time.Time
}

// Key returns the aggregate's group key.
func (a *WeeklyAggregate) Key() GroupKey {
	return GroupKey{
		GradeLevelID: a.GradeLevelID,
		ClassroomID:  a.ClassroomID,
		Subject:      a.Subject,
		WeekStart:    a.WeekStart,
	}
}
