package timetable

import (
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-grid-api/internal/models"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

const (
	professorMarker = "преподавателя"
	groupMarker     = "группы"
)

// SheetSource is the read side of a spreadsheet. Coordinates are 1-based.
type SheetSource interface {
	// CellText returns the text of a cell or "" when it is empty.
	CellText(row, col int) string
	// IsMerged reports whether the cell belongs to a merged range.
	IsMerged(row, col int) bool
	// Value returns the text of a cell addressed in A1 form.
	Value(cell string) string
}

// Options tunes a single extraction pass.
type Options struct {
	Grid GridConfig
	// Variant forces the sheet variant; empty means detect it from the header cell.
	Variant models.DocumentVariant
	Logger  *zap.Logger
}

// Result is everything one extraction pass produces.
type Result struct {
	Label       string                   `json:"label"`
	Variant     models.DocumentVariant   `json:"variant"`
	Records     []models.RawLessonRecord `json:"records"`
	Occurrences []models.Occurrence      `json:"occurrences"`
	Conflicts   []models.Conflict        `json:"conflicts"`
	Report      string                   `json:"report"`
	ParseMisses int                      `json:"parseMisses"`
}

// DetectVariant reads the header text: a lecturer sheet names "преподавателя
// <name>", a group sheet names "группы <group>".
func DetectVariant(header string) (models.DocumentVariant, string, error) {
	if _, name, ok := strings.Cut(header, professorMarker); ok {
		return models.VariantProfessor, strings.TrimSpace(name), nil
	}
	if _, group, ok := strings.Cut(header, groupMarker); ok {
		return models.VariantStudent, strings.TrimSpace(group), nil
	}
	return "", "", appErrors.ErrUnknownDocument
}

func labelFor(header string, variant models.DocumentVariant) string {
	marker := professorMarker
	if variant == models.VariantStudent {
		marker = groupMarker
	}
	if _, label, ok := strings.Cut(header, marker); ok {
		return strings.TrimSpace(label)
	}
	return strings.TrimSpace(header)
}

// Extract scans the configured rows and columns of a sheet, expands every lesson
// into occurrences and reports slot collisions. A calendar error aborts the
// whole pass; unmatched segments are skipped and counted.
func Extract(sheet SheetSource, opts Options) (*Result, error) {
	cfg := opts.Grid
	if cfg.RowWeekdays == nil || cfg.ColumnSlots == nil {
		cfg = DefaultGridConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	header := sheet.Value(cfg.HeaderCell)
	variant := opts.Variant
	var label string
	if variant == "" {
		detected, name, err := DetectVariant(header)
		if err != nil {
			return nil, err
		}
		variant, label = detected, name
	} else {
		label = labelFor(header, variant)
	}

	extractor := NewExtractor(variant)
	index := NewOccurrenceIndex()
	expander := NewExpander(cfg, extractor, sheet, index)
	misses := 0

	for row := cfg.FirstRow; row <= cfg.LastRow; row++ {
		for col := cfg.FirstColumn; col <= cfg.LastColumn; col++ {
			text := sheet.CellText(row, col)
			if text == "" {
				continue
			}
			merged := sheet.IsMerged(row, col)
			for _, record := range extractor.Extract(text) {
				if record.Void() {
					misses++
					logger.Debug("unmatched lesson segment", zap.String("cell", CellName(row, col)))
					continue
				}
				if err := expander.Expand(record, row, col, merged); err != nil {
					return nil, err
				}
			}
		}
	}

	conflicts := FindConflicts(index)
	result := &Result{
		Label:       label,
		Variant:     variant,
		Records:     expander.Records(),
		Occurrences: expander.Occurrences(),
		Conflicts:   conflicts,
		Report:      FormatReport(conflicts, variant),
		ParseMisses: misses,
	}
	logger.Debug("sheet extracted",
		zap.String("label", label),
		zap.String("variant", string(variant)),
		zap.Int("occurrences", len(result.Occurrences)),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("parse_misses", misses),
	)
	return result, nil
}
