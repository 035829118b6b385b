// Package tickets loads support ticket exports from CSV.
package tickets

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/models"
)

// Required CSV columns. Anything else lands in ticket metadata via the
// optional "extra" JSON column.
const (
	columnTimestamp = "ds"
	columnMessage   = "original_message"
	columnExtra     = "extra"
)

// timestampLayouts are tried in order when parsing the ds column. Exports
// mix full RFC3339, zone-less datetimes, and bare dates.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Loader reads ticket CSV exports.
type Loader struct {
	logger arbor.ILogger
}

// NewLoader creates a new ticket loader.
func NewLoader(logger arbor.ILogger) *Loader {
	return &Loader{logger: logger}
}

// Load reads every ticket from the CSV export at path. Ticket ids are
// assigned positionally (ticket_0, ticket_1, ...) so they are stable for a
// given export across runs.
func (l *Loader) Load(path string) ([]*models.Ticket, error) {
	return l.LoadWindow(path, time.Time{}, time.Time{})
}

// LoadWindow reads tickets whose day falls inside [start, end] inclusive.
// Zero bounds disable that side of the filter. Tickets whose timestamp does
// not parse always pass the filter; dropping them silently would understate
// the batch.
func (l *Loader) LoadWindow(path string, start, end time.Time) ([]*models.Ticket, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticket file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Tolerate ragged rows

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header from %s: %w", path, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{columnTimestamp, columnMessage} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("ticket file %s is missing required column '%s'", path, required)
		}
	}

	startDay := truncateToDay(start)
	endDay := truncateToDay(end)

	tickets := make([]*models.Ticket, 0, 64)
	skipped := 0
	for idx := 0; ; idx++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d from %s: %w", idx+2, path, err)
		}

		createdAt, parsed := parseTimestamp(fieldAt(record, columns[columnTimestamp]))
		if !parsed {
			l.logger.Debug().
				Int("row", idx).
				Str("ds", fieldAt(record, columns[columnTimestamp])).
				Msg("Ticket timestamp did not parse, keeping ticket with load time")
		}

		// Window filter applies only to tickets with a real timestamp
		if parsed {
			day := truncateToDay(createdAt)
			if !startDay.IsZero() && day.Before(startDay) {
				skipped++
				continue
			}
			if !endDay.IsZero() && day.After(endDay) {
				skipped++
				continue
			}
		}

		tickets = append(tickets, &models.Ticket{
			ID:        fmt.Sprintf("ticket_%d", idx),
			Content:   fieldAt(record, columns[columnMessage]),
			CreatedAt: createdAt,
			Metadata:  parseExtra(record, columns, columnExtra),
		})
	}

	l.logger.Info().
		Str("path", path).
		Int("tickets", len(tickets)).
		Int("filtered_out", skipped).
		Msg("Loaded tickets from CSV")

	return tickets, nil
}

// DateRange scans the export and returns the default reporting window: the
// latest day present and the day before it. Returns an error when no row
// carries a parseable timestamp.
func (l *Loader) DateRange(path string) (time.Time, time.Time, error) {
	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to open ticket file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to read CSV header from %s: %w", path, err)
	}

	dsIndex := -1
	for i, name := range header {
		if strings.TrimSpace(name) == columnTimestamp {
			dsIndex = i
			break
		}
	}
	if dsIndex < 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("ticket file %s is missing required column '%s'", path, columnTimestamp)
	}

	var latest time.Time
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("failed to scan ticket file %s: %w", path, err)
		}

		if t, ok := parseTimestamp(fieldAt(record, dsIndex)); ok {
			day := truncateToDay(t)
			if day.After(latest) {
				latest = day
			}
		}
	}

	if latest.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("no valid dates found in %s", path)
	}

	return latest.AddDate(0, 0, -1), latest, nil
}

// parseTimestamp tries each known layout. The second return reports whether
// the value parsed; callers get the current time otherwise so every ticket
// carries a usable date key.
func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC(), false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Now().UTC(), false
}

func truncateToDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func fieldAt(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return record[index]
}

// parseExtra decodes the optional extra column as JSON. Anything that does
// not decode is ignored rather than failing the row.
func parseExtra(record []string, columns map[string]int, name string) map[string]interface{} {
	index, ok := columns[name]
	if !ok {
		return nil
	}
	raw := strings.TrimSpace(fieldAt(record, index))
	if raw == "" {
		return nil
	}

	var extra map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil
	}
	return extra
}
