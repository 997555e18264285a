package timetable

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

// DefaultReferenceYear is the year "DD.MM" cell dates are resolved against.
const DefaultReferenceYear = 2025

// GridConfig holds the sheet geometry: which rows map to which weekday and which
// columns map to which time slot. Rows and columns are 1-based like spreadsheet
// coordinates.
type GridConfig struct {
	ReferenceYear int                     `yaml:"reference_year"`
	HeaderCell    string                  `yaml:"header_cell"`
	FirstRow      int                     `yaml:"first_row"`
	LastRow       int                     `yaml:"last_row"`
	FirstColumn   int                     `yaml:"first_column"`
	LastColumn    int                     `yaml:"last_column"`
	RowWeekdays   map[int]time.Weekday    `yaml:"rows"`
	ColumnSlots   map[int]models.TimeSpan `yaml:"columns"`
}

// DefaultGridConfig returns the six-day, seven-slot layout: rows 5..16 cover
// Monday..Saturday two rows per day, columns B..H cover 09:00..21:30.
func DefaultGridConfig() GridConfig {
	rows := make(map[int]time.Weekday, 12)
	for row := 5; row <= 16; row++ {
		rows[row] = time.Monday + time.Weekday((row-5)/2)
	}
	return GridConfig{
		ReferenceYear: DefaultReferenceYear,
		HeaderCell:    "C2",
		FirstRow:      5,
		LastRow:       16,
		FirstColumn:   2,
		LastColumn:    8,
		RowWeekdays:   rows,
		ColumnSlots: map[int]models.TimeSpan{
			2: {Start: "09:00", End: "10:30"},
			3: {Start: "10:45", End: "12:15"},
			4: {Start: "13:00", End: "14:30"},
			5: {Start: "14:45", End: "16:15"},
			6: {Start: "16:30", End: "18:00"},
			7: {Start: "18:15", End: "19:45"},
			8: {Start: "20:00", End: "21:30"},
		},
	}
}

// LoadGridConfig reads a YAML override. Fields the file leaves out keep their
// defaults; a rows or columns table given in the file replaces the default table
// whole. When a table is omitted, the default entries inside the configured
// bounds are used. An empty path returns the defaults.
func LoadGridConfig(path string) (GridConfig, error) {
	if path == "" {
		return DefaultGridConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return GridConfig{}, fmt.Errorf("read grid config: %w", err)
	}
	var override GridConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return GridConfig{}, fmt.Errorf("parse grid config: %w", err)
	}
	cfg := override.withDefaults(DefaultGridConfig())
	if err := cfg.Validate(); err != nil {
		return GridConfig{}, err
	}
	return cfg, nil
}

func (c GridConfig) withDefaults(def GridConfig) GridConfig {
	if c.ReferenceYear == 0 {
		c.ReferenceYear = def.ReferenceYear
	}
	if c.HeaderCell == "" {
		c.HeaderCell = def.HeaderCell
	}
	if c.FirstRow == 0 {
		c.FirstRow = def.FirstRow
	}
	if c.LastRow == 0 {
		c.LastRow = def.LastRow
	}
	if c.FirstColumn == 0 {
		c.FirstColumn = def.FirstColumn
	}
	if c.LastColumn == 0 {
		c.LastColumn = def.LastColumn
	}
	if c.RowWeekdays == nil {
		c.RowWeekdays = make(map[int]time.Weekday, len(def.RowWeekdays))
		for row, wd := range def.RowWeekdays {
			if row >= c.FirstRow && row <= c.LastRow {
				c.RowWeekdays[row] = wd
			}
		}
	}
	if c.ColumnSlots == nil {
		c.ColumnSlots = make(map[int]models.TimeSpan, len(def.ColumnSlots))
		for col, span := range def.ColumnSlots {
			if col >= c.FirstColumn && col <= c.LastColumn {
				c.ColumnSlots[col] = span
			}
		}
	}
	return c
}

// Validate checks that every slot is well formed, every mapped row is a
// Monday..Saturday weekday, and both tables stay inside the configured bounds.
func (c GridConfig) Validate() error {
	if c.ReferenceYear <= 0 {
		return fmt.Errorf("grid config: reference_year must be positive")
	}
	if c.FirstRow <= 0 || c.LastRow < c.FirstRow {
		return fmt.Errorf("grid config: invalid row range %d..%d", c.FirstRow, c.LastRow)
	}
	if c.FirstColumn <= 0 || c.LastColumn < c.FirstColumn {
		return fmt.Errorf("grid config: invalid column range %d..%d", c.FirstColumn, c.LastColumn)
	}
	if len(c.RowWeekdays) == 0 || len(c.ColumnSlots) == 0 {
		return fmt.Errorf("grid config: rows and columns must not be empty")
	}
	for row, wd := range c.RowWeekdays {
		if row < c.FirstRow || row > c.LastRow {
			return fmt.Errorf("grid config: row %d outside %d..%d", row, c.FirstRow, c.LastRow)
		}
		if wd < time.Monday || wd > time.Saturday {
			return fmt.Errorf("grid config: row %d maps to unsupported weekday %d", row, wd)
		}
	}
	for col, span := range c.ColumnSlots {
		if col < c.FirstColumn || col > c.LastColumn {
			return fmt.Errorf("grid config: column %d outside %d..%d", col, c.FirstColumn, c.LastColumn)
		}
		if !validClock(span.Start) || !validClock(span.End) {
			return fmt.Errorf("grid config: column %d has malformed slot %s", col, span)
		}
		if span.Start >= span.End {
			return fmt.Errorf("grid config: column %d slot %s must start before it ends", col, span)
		}
	}
	return nil
}

// ReferenceDate is 1 January of the reference year. Date windows are parsed
// against it so they land in the same year as the sheet dates.
func (c GridConfig) ReferenceDate() time.Time {
	return time.Date(c.ReferenceYear, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// Weekday resolves the weekday of a sheet row.
func (c GridConfig) Weekday(row int) (time.Weekday, bool) {
	wd, ok := c.RowWeekdays[row]
	return wd, ok
}

// Slot resolves the time slot of a sheet column.
func (c GridConfig) Slot(col int) (models.TimeSpan, bool) {
	span, ok := c.ColumnSlots[col]
	return span, ok
}

// CellName converts 1-based coordinates to an A1 reference.
func CellName(row, col int) string {
	var letters []byte
	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}
	return string(letters) + strconv.Itoa(row)
}

func validClock(raw string) bool {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return false
	}
	_, err := time.Parse("15:04", raw)
	return err == nil
}
