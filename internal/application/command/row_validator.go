package command

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROW VALIDATOR
// Checks one raw workbook row against the fixed column schema and normalises
// the valid ones. Failures are returned as values, never panics, so the rest
// of the file is still attempted.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreRow is a validated, normalised workbook row.
type ScoreRow struct {
	// Number is the sheet row the data came from.
	Number int

	// WeekStart is the Monday of the row's week.
	WeekStart time.Time

	ClassroomCode string
	Subject       assessment.Subject

	// StudentName is kept exactly as typed.
	StudentName string

	// StudentID is the optional external ID, trimmed.
	StudentID string

	// GradeLevel is the optional grade label, trimmed.
	GradeLevel string

	Score float64
}

// scoreRowInput is the string form of a row that the struct tags validate.
type scoreRowInput struct {
	WeekStart     string `col:"WeekStart" validate:"required,weekdate"`
	ClassroomCode string `col:"ClassroomCode" validate:"required,max=32"`
	Subject       string `col:"Subject" validate:"required,subject"`
	StudentName   string `col:"StudentName" validate:"required,notblank,max=200"`
	StudentID     string `col:"StudentID" validate:"max=64"`
	GradeLevel    string `col:"GradeLevel" validate:"max=32"`
	Score         string `col:"Score" validate:"required,score"`
}

// Custom validation tags and their messages.
const (
	weekDateTag  = "weekdate"
	subjectTag   = "subject"
	scoreTag     = "score"
	notBlankTag  = "notblank"
	requiredTag  = "required"
	weekDateText = "{0} is not a valid date"
	subjectText  = "{0} must be Math or Reading"
	scoreText    = "{0} must be a number between 0 and 100"
	requiredText = "{0} is required"
)

// RowValidator validates raw rows. It is safe for concurrent use.
type RowValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewRowValidator builds a validator with English messages that name the
// workbook columns.
func NewRowValidator() *RowValidator {
	locale := en.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report workbook column names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("col"); name != "" {
			return name
		}
		return fld.Name
	})

	_ = validate.RegisterValidation(weekDateTag, validateWeekDate)
	_ = validate.RegisterValidation(subjectTag, validateSubject)
	_ = validate.RegisterValidation(scoreTag, validateScore)
	_ = validate.RegisterValidation(notBlankTag, validateNotBlank)

	registerTranslation(validate, translator, weekDateTag, weekDateText, false)
	registerTranslation(validate, translator, subjectTag, subjectText, false)
	registerTranslation(validate, translator, scoreTag, scoreText, false)
	registerTranslation(validate, translator, notBlankTag, requiredText, false)
	registerTranslation(validate, translator, requiredTag, requiredText, true)

	return &RowValidator{validate: validate, translator: translator}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Validate checks one row. It returns either a normalised row or a
// *upload.RowValidationError listing every failed column.
func (v *RowValidator) Validate(raw upload.RawRow) (*ScoreRow, error) {
	in := scoreRowInput{
		WeekStart:     cellString(raw.Get(upload.ColumnWeekStart)),
		ClassroomCode: strings.TrimSpace(cellString(raw.Get(upload.ColumnClassroomCode))),
		Subject:       strings.TrimSpace(cellString(raw.Get(upload.ColumnSubject))),
		StudentName:   cellString(raw.Get(upload.ColumnStudentName)),
		StudentID:     strings.TrimSpace(cellString(raw.Get(upload.ColumnStudentID))),
		GradeLevel:    strings.TrimSpace(cellString(raw.Get(upload.ColumnGradeLevel))),
		Score:         strings.TrimSpace(cellString(raw.Get(upload.ColumnScore))),
	}

	if err := v.validate.Struct(in); err != nil {
		return nil, v.rowError(raw.Number, err)
	}

	// The tags already proved these parse.
	week, _ := timeutil.ParseDate(in.WeekStart)
	subject, _ := assessment.ParseSubject(in.Subject)
	score, _ := strconv.ParseFloat(in.Score, 64)

	return &ScoreRow{
		Number:        raw.Number,
		WeekStart:     timeutil.WeekStart(week),
		ClassroomCode: in.ClassroomCode,
		Subject:       subject,
		StudentName:   in.StudentName,
		StudentID:     in.StudentID,
		GradeLevel:    in.GradeLevel,
		Score:         assessment.RoundScore(score),
	}, nil
}

func (v *RowValidator) rowError(row int, err error) error {
	rowErr := &upload.RowValidationError{Row: row}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		rowErr.Fields = append(rowErr.Fields, upload.FieldError{Message: err.Error()})
		return rowErr
	}

	for _, fe := range verrs {
		rowErr.Fields = append(rowErr.Fields, upload.FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(v.translator),
		})
	}
	return rowErr
}

// ─── Cell coercion ──────────────────────────────────────────────────────────

// cellString renders a cell value as text. Whole numbers lose their ".0" so
// numeric IDs and grade labels read naturally.
func cellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return timeutil.FormatDate(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ─── Custom validators ──────────────────────────────────────────────────────

func validateWeekDate(fl validator.FieldLevel) bool {
	_, err := timeutil.ParseDate(fl.Field().String())
	return err == nil
}

func validateSubject(fl validator.FieldLevel) bool {
	_, err := assessment.ParseSubject(fl.Field().String())
	return err == nil
}

func validateScore(fl validator.FieldLevel) bool {
	f, err := strconv.ParseFloat(fl.Field().String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f >= assessment.MinScore && f <= assessment.MaxScore
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
