// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD READS
// Shared plumbing for the dashboard queries: scope resolution, response
// caching and the DTOs they return.
// ══════════════════════════════════════════════════════════════════════════════

// CacheKeyPrefix prefixes every dashboard cache key.
const CacheKeyPrefix = "dashboard:"

// DashboardCache stores serialized query results. Implementations apply
// their own TTL.
type DashboardCache interface {
	// Get returns the cached bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Generation returns the current invalidation generation. Keys are built
	// from it, so a result computed before an invalidation is stored under a
	// key nobody reads afterwards.
	Generation(ctx context.Context) (int64, error)

	// InvalidateAll advances the generation and drops every dashboard entry.
	InvalidateAll(ctx context.Context) error
}

// Roster bundles the lookups dashboard queries need to resolve their scope.
type Roster struct {
	Classrooms  roster.ClassroomRepository
	GradeLevels roster.GradeLevelRepository
}

// scope is a resolved grade with its classrooms.
type scope struct {
	grade      *roster.GradeLevel
	classrooms []*roster.Classroom
	classroom  *roster.Classroom // nil when the query spans the grade
}

func (s *scope) codeOf(classroomID string) string {
	for _, c := range s.classrooms {
		if c.ID == classroomID {
			return c.Code
		}
	}
	return classroomID
}

// resolve looks up a grade label and optional classroom code. A classroom
// from another grade is reported as not found.
func (r Roster) resolve(ctx context.Context, op, gradeLabel, classroomCode string) (*scope, error) {
	grade, err := r.GradeLevels.Resolve(ctx, gradeLabel)
	if err != nil {
		return nil, lookupError(op, fmt.Sprintf("grade %q", gradeLabel), err)
	}

	rooms, err := r.Classrooms.ListByGradeLevel(ctx, grade.ID)
	if err != nil {
		return nil, shared.WrapError("query", op, shared.ErrPersistence, "failed to list classrooms", err)
	}

	s := &scope{grade: grade, classrooms: rooms}
	if classroomCode == "" {
		return s, nil
	}

	for _, c := range rooms {
		if c.Code == classroomCode {
			s.classroom = c
			return s, nil
		}
	}
	return nil, shared.WrapError("query", op, shared.ErrNotFound,
		fmt.Sprintf("classroom %q not found in grade %s", classroomCode, grade.Label()), shared.ErrClassroomNotFound)
}

func lookupError(op, what string, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.WrapError("query", op, shared.ErrNotFound, what+" not found", err)
	}
	return shared.WrapError("query", op, shared.ErrPersistence, "failed to resolve "+what, err)
}

func validationError(op, msg string) error {
	return shared.NewDomainError("query", op, shared.ErrValidation, msg)
}

// cacheKey joins the parts of a query's identity.
func cacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// generationKey places key under the dashboard prefix and generation gen.
func generationKey(gen int64, key string) string {
	return CacheKeyPrefix + strconv.FormatInt(gen, 10) + ":" + key
}

// cached serves key from the cache, falling back to load. The generation is
// read before load runs: if an upload invalidates the cache meanwhile, the
// result lands under the old generation and is never served. Cache failures
// are logged and never fail the query.
func cached[T any](ctx context.Context, cache DashboardCache, key string, load func() (*T, error)) (*T, error) {
	if cache == nil {
		return load()
	}
	log := logger.FromContext(ctx)

	gen, err := cache.Generation(ctx)
	if err != nil {
		log.Warn("dashboard cache generation unavailable", logger.Err(err))
		return load()
	}
	key = generationKey(gen, key)

	if data, ok, err := cache.Get(ctx, key); err != nil {
		log.Warn("dashboard cache read failed", logger.String("key", key), logger.Err(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return &v, nil
		}
	}

	v, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(v); err == nil {
		if err := cache.Set(ctx, key, data); err != nil {
			log.Warn("dashboard cache write failed", logger.String("key", key), logger.Err(err))
		}
	}
	return v, nil
}

// ─── DTOs ───────────────────────────────────────────────────────────────────

// AggregateDTO is one stored weekly aggregate.
type AggregateDTO struct {
	Classroom string `json:"classroom"`
	Subject   string `json:"subject"`
	WeekStart string `json:"weekStart"`
	assessment.TierCounts
}
