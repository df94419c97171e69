// Package ledger records evaluations in an xlsx workbook, one row per
// evaluation keyed by its request id.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/es-reviewer/internal/evaluator"
)

const SheetName = "reviews"

var header = []string{"id", "time", "user", "company", "decision", "quality", "conservative", "trust", "top3", "state"}

// Entry is one ledger row.
type Entry struct {
	ID           string
	Time         time.Time
	User         string
	Company      string
	Decision     string
	Quality      int
	Conservative int
	Trust        string
	Top3         []string
	State        string
}

// FromOutcome converts an evaluation into a row. Failed evaluations keep
// their state with empty scores.
func FromOutcome(out *evaluator.Outcome, user string, at time.Time) Entry {
	e := Entry{
		ID:      out.ID,
		Time:    at,
		User:    user,
		Company: out.Company,
		State:   string(out.Result.State),
	}
	if r := out.Report; r != nil {
		e.Decision = string(r.Decision)
		e.Quality = r.Base.Quality
		e.Conservative = r.Base.Conservative
		e.Trust = string(r.Base.Trust)
		for _, c := range r.Top {
			e.Top3 = append(e.Top3, c.Label)
		}
	}
	return e
}

func (e Entry) row() []any {
	return []any{
		e.ID,
		e.Time.UTC().Format(time.RFC3339),
		e.User,
		e.Company,
		e.Decision,
		e.Quality,
		e.Conservative,
		e.Trust,
		strings.Join(e.Top3, " / "),
		e.State,
	}
}

// Ledger serializes writes to one workbook.
type Ledger struct {
	mu   sync.Mutex
	path string
}

func New(path string) (*Ledger, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return nil, fmt.Errorf("ledger path %q must end with .xlsx", path)
	}
	return &Ledger{path: path}, nil
}

func (l *Ledger) Path() string {
	return l.path
}

// Upsert replaces the row with the same id, or appends a new one.
func (l *Ledger) Upsert(e Entry) error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("ledger entry id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return fmt.Errorf("read ledger rows: %w", err)
	}

	target := len(rows) + 1
	for i, r := range rows {
		if i > 0 && len(r) > 0 && r[0] == e.ID {
			target = i + 1
			break
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, target)
	if err != nil {
		return err
	}
	values := e.row()
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}

	return l.save(f)
}

// Entries reads every row back.
func (l *Ledger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read ledger rows: %w", err)
	}

	var out []Entry
	for i, r := range rows {
		if i == 0 {
			continue
		}
		out = append(out, parseRow(r))
	}
	return out, nil
}

func parseRow(r []string) Entry {
	col := func(i int) string {
		if i < len(r) {
			return r[i]
		}
		return ""
	}

	e := Entry{
		ID:       col(0),
		User:     col(2),
		Company:  col(3),
		Decision: col(4),
		Trust:    col(7),
		State:    col(9),
	}
	e.Time, _ = time.Parse(time.RFC3339, col(1))
	e.Quality, _ = strconv.Atoi(col(5))
	e.Conservative, _ = strconv.Atoi(col(6))
	if top := col(8); top != "" {
		e.Top3 = strings.Split(top, " / ")
	}
	return e
}

func (l *Ledger) open() (*excelize.File, error) {
	if _, err := os.Stat(l.path); err == nil {
		f, err := excelize.OpenFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		if idx, err := f.GetSheetIndex(SheetName); err != nil || idx < 0 {
			if _, err := f.NewSheet(SheetName); err != nil {
				f.Close()
				return nil, fmt.Errorf("create ledger sheet: %w", err)
			}
			if err := writeHeader(f); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat ledger: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("name ledger sheet: %w", err)
	}
	if err := writeHeader(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeHeader(f *excelize.File) error {
	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &values); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return err
	}
	_ = f.SetColWidth(SheetName, "A", "A", 38)
	_ = f.SetColWidth(SheetName, "I", "I", 40)
	return nil
}

// save writes to a temporary file next to the ledger and renames it into place.
func (l *Ledger) save(f *excelize.File) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
