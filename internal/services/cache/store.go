// Package cache persists per-ticket analyses and daily summaries between
// pipeline runs. Entries are plain JSON files in a dated directory layout,
// so a re-run only pays for model calls whose results are missing.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
)

// Store is the filesystem-backed result cache.
//
// Layout:
//
//	{analyses}/{YYYY-MM}/{DD}/{ticket_id}.json
//	{summaries}/{YYYY-MM-DD}.json
//
// A corrupt or unreadable entry reads as a miss: the pipeline recomputes
// the result and the next Put overwrites the bad file.
type Store struct {
	analysesRoot  string
	summariesRoot string
	logger        arbor.ILogger
}

var _ interfaces.ResultCache = (*Store)(nil)

// NewStore creates the cache store and its root directories.
func NewStore(analysesRoot, summariesRoot string, logger arbor.ILogger) (*Store, error) {
	for _, dir := range []string{analysesRoot, summariesRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	return &Store{
		analysesRoot:  analysesRoot,
		summariesRoot: summariesRoot,
		logger:        logger,
	}, nil
}

// GetAnalysis retrieves the cached analysis for a ticket on the given day.
func (s *Store) GetAnalysis(dateKey, ticketID string) (*models.TicketAnalysis, bool) {
	path, err := s.analysisPath(dateKey, ticketID)
	if err != nil {
		return nil, false
	}

	var analysis models.TicketAnalysis
	if !s.readEntry(path, &analysis) {
		return nil, false
	}
	if analysis.TicketID == "" {
		// Decoded but structurally empty, treat as corrupt
		s.logger.Warn().Str("path", path).Msg("Discarding cached analysis with no ticket id")
		return nil, false
	}
	return &analysis, true
}

// PutAnalysis persists a successful analysis under the ticket's day.
func (s *Store) PutAnalysis(dateKey string, analysis *models.TicketAnalysis) error {
	if analysis == nil || analysis.TicketID == "" {
		return fmt.Errorf("analysis must carry a ticket id")
	}

	path, err := s.analysisPath(dateKey, analysis.TicketID)
	if err != nil {
		return err
	}
	return s.writeEntry(path, analysis)
}

// GetSummary retrieves the cached summary for a day.
func (s *Store) GetSummary(dateKey string) (*models.DailySummary, bool) {
	path, err := s.summaryPath(dateKey)
	if err != nil {
		return nil, false
	}

	var summary models.DailySummary
	if !s.readEntry(path, &summary) {
		return nil, false
	}
	if summary.Date == "" {
		s.logger.Warn().Str("path", path).Msg("Discarding cached summary with no date")
		return nil, false
	}
	return &summary, true
}

// PutSummary persists a successful daily summary.
func (s *Store) PutSummary(summary *models.DailySummary) error {
	if summary == nil || summary.Date == "" {
		return fmt.Errorf("summary must carry a date")
	}

	path, err := s.summaryPath(summary.Date)
	if err != nil {
		return err
	}
	return s.writeEntry(path, summary)
}

// analysisPath maps a day and ticket id onto the dated layout. Splitting on
// the parsed date rather than the raw string keeps malformed keys out of
// the tree.
func (s *Store) analysisPath(dateKey, ticketID string) (string, error) {
	if ticketID == "" {
		return "", fmt.Errorf("ticket id cannot be empty")
	}
	t, err := time.Parse(models.DateKeyFormat, dateKey)
	if err != nil {
		return "", fmt.Errorf("invalid date key '%s': %w", dateKey, err)
	}
	return filepath.Join(s.analysesRoot, t.Format("2006-01"), t.Format("02"), ticketID+".json"), nil
}

func (s *Store) summaryPath(dateKey string) (string, error) {
	t, err := time.Parse(models.DateKeyFormat, dateKey)
	if err != nil {
		return "", fmt.Errorf("invalid date key '%s': %w", dateKey, err)
	}
	return filepath.Join(s.summariesRoot, t.Format(models.DateKeyFormat)+".json"), nil
}

// readEntry loads and decodes one cache file. Any failure reads as a miss.
func (s *Store) readEntry(path string, out interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to read cache entry, treating as miss")
		}
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Corrupt cache entry, treating as miss")
		return false
	}

	return true
}

// writeEntry atomically replaces one cache file. The temp file lives in the
// target directory so the rename never crosses filesystems, and a reader
// racing the write sees either the old entry or the new one, never a
// partial file.
func (s *Store) writeEntry(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache entry %s: %w", path, err)
	}

	return nil
}
