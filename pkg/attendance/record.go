// Package attendance persists check-in events and suppresses duplicates
// within a cooldown window.
package attendance

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"time"
)

// Record kinds.
const (
	KindNormal = "normal"
	KindDemo   = "demo"
)

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"
	timestampLayout = "2006-01-02 15:04:05"
)

// Header is the column layout of the attendance file. The kind column is
// present only when kind tagging is enabled.
var Header = []string{"employee_id", "name", "date", "time", "timestamp"}

// KindColumn is the optional sixth column.
const KindColumn = "kind"

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("attendance store closed")

// Record is one attendance event.
type Record struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Timestamp  string `json:"timestamp"`
	Kind       string `json:"kind,omitempty"`
}

// NewRecord builds a record for an event at t.
func NewRecord(id, name, kind string, t time.Time) Record {
	return Record{
		EmployeeID: id,
		Name:       name,
		Date:       t.Format(dateLayout),
		Time:       t.Format(timeLayout),
		Timestamp:  t.Format(timestampLayout),
		Kind:       kind,
	}
}

func (r Record) row(withKind bool) []string {
	row := []string{r.EmployeeID, r.Name, r.Date, r.Time, r.Timestamp}
	if withKind {
		kind := r.Kind
		if kind == "" {
			kind = KindNormal
		}
		row = append(row, kind)
	}
	return row
}

func fromRow(row []string) (Record, bool) {
	if len(row) < len(Header) {
		return Record{}, false
	}
	r := Record{
		EmployeeID: row[0],
		Name:       row[1],
		Date:       row[2],
		Time:       row[3],
		Timestamp:  row[4],
	}
	if len(row) > len(Header) {
		r.Kind = row[5]
	}
	return r, true
}

// Store is the durable attendance log.
type Store interface {
	Append(ctx context.Context, r Record) error
	Records(ctx context.Context) ([]Record, error)
	// Dump writes the whole log as delimited text, header included.
	Dump(ctx context.Context, w io.Writer) error
	Close() error
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []Record, withKind bool) error {
	cw := csv.NewWriter(w)
	header := Header
	if withKind {
		header = append(append([]string{}, Header...), KindColumn)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.row(withKind)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
