package assessment

import (
	"fmt"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY AGGREGATE RECOUNT
// ══════════════════════════════════════════════════════════════════════════════

// Recount rebuilds a group's aggregate from every score record of its
// assessment. Tiers are re-derived from the raw score so a stored tier can
// never drift from the classifier.
func Recount(key GroupKey, scores []*ScoreRecord, now time.Time) (*WeeklyAggregate, error) {
	agg := &WeeklyAggregate{
		GradeLevelID: key.GradeLevelID,
		ClassroomID:  key.ClassroomID,
		Subject:      key.Subject,
		WeekStart:    key.WeekStart,
		ComputedAt:   now,
	}

	for _, rec := range scores {
		if rec == nil {
			continue
		}
		agg.Add(Classify(rec.Score))
	}

	if agg.Total != countNonNil(scores) {
		return nil, fmt.Errorf("assessment: recount of %s saw %d of %d scores", key, agg.Total, len(scores))
	}
	if err := agg.Validate(); err != nil {
		return nil, fmt.Errorf("assessment: recount of %s: %w", key, err)
	}
	return agg, nil
}

func countNonNil(scores []*ScoreRecord) int {
	n := 0
	for _, s := range scores {
		if s != nil {
			n++
		}
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTION VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// Distribution is a set of tier counts with their percentages.
type Distribution struct {
	TierCounts
	GreenPct  float64 `json:"greenPct"`
	OrangePct float64 `json:"orangePct"`
	RedPct    float64 `json:"redPct"`
	GrayPct   float64 `json:"grayPct"`
}

// NewDistribution derives percentages for counts.
func NewDistribution(c TierCounts) Distribution {
	return Distribution{
		TierCounts: c,
		GreenPct:   c.Percent(TierGreen),
		OrangePct:  c.Percent(TierOrange),
		RedPct:     c.Percent(TierRed),
		GrayPct:    c.Percent(TierGray),
	}
}

// Sum adds up the counts of several aggregates.
func Sum(aggs []*WeeklyAggregate) Distribution {
	var total TierCounts
	for _, a := range aggs {
		total.Merge(a.TierCounts)
	}
	return NewDistribution(total)
}

// WeekPoint is one week of a trend series.
type WeekPoint struct {
	WeekStart time.Time `json:"weekStart"`
	Distribution
}

// ByWeek sums aggregates per week start, ascending.
func ByWeek(aggs []*WeeklyAggregate) []WeekPoint {
	byWeek := make(map[time.Time]*TierCounts)
	for _, a := range aggs {
		c, ok := byWeek[a.WeekStart]
		if !ok {
			c = &TierCounts{}
			byWeek[a.WeekStart] = c
		}
		c.Merge(a.TierCounts)
	}

	points := make([]WeekPoint, 0, len(byWeek))
	for week, c := range byWeek {
		points = append(points, WeekPoint{WeekStart: week, Distribution: NewDistribution(*c)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].WeekStart.Before(points[j].WeekStart) })
	return points
}

// ByClassroom sums aggregates per classroom id.
func ByClassroom(aggs []*WeeklyAggregate) map[string]Distribution {
	byRoom := make(map[string]*TierCounts)
	for _, a := range aggs {
		c, ok := byRoom[a.ClassroomID]
		if !ok {
			c = &TierCounts{}
			byRoom[a.ClassroomID] = c
		}
		c.Merge(a.TierCounts)
	}

	out := make(map[string]Distribution, len(byRoom))
	for id, c := range byRoom {
		out[id] = NewDistribution(*c)
	}
	return out
}
