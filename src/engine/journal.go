package engine

// This file contains the journal functionality for the embedded store.
// Every change is journaled once its bundle file has been rewritten.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const journalDateLayout = "2006-01-02"

// JournalEntry represents a single entry in the journal.
type JournalEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Bundle    string    `json:"bundle"`
	Details   string    `json:"details"`
}

// Journal is an append-only log, one file per day.
type Journal struct {
	mu            sync.Mutex
	file          *os.File  // File handle for the journal file
	baseFilePath  string    // Base path for journal files (without date)
	currentDate   time.Time // The date of the current journal file
	retentionDays int
	now           func() time.Time
}

// NewJournal creates a new journal instance.
func NewJournal(journalFilePath string, retentionDays int) (*Journal, error) {
	journal := &Journal{
		baseFilePath:  getBaseFilePath(journalFilePath),
		retentionDays: retentionDays,
		now:           time.Now,
	}

	// Open the current day's journal file
	if err := journal.ensureCorrectFileOpen(); err != nil {
		return nil, err
	}

	return journal, nil
}

var journalDatePattern = regexp.MustCompile(`_\d{4}-\d{2}-\d{2}$`)

// getBaseFilePath extracts the base path without date component
func getBaseFilePath(journalFilePath string) string {
	dir := filepath.Dir(journalFilePath)
	base := filepath.Base(journalFilePath)
	ext := filepath.Ext(journalFilePath)

	baseName := strings.TrimSuffix(base, ext)
	baseName = journalDatePattern.ReplaceAllString(baseName, "")

	return filepath.Join(dir, baseName)
}

func (j *Journal) fileNameFor(day time.Time) string {
	return fmt.Sprintf("%s_%s.journal", j.baseFilePath, day.Format(journalDateLayout))
}

// ensureCorrectFileOpen ensures the correct journal file is open based on current date
func (j *Journal) ensureCorrectFileOpen() error {
	today := j.now().UTC().Truncate(24 * time.Hour)

	// If we already have the correct file open, do nothing
	if j.file != nil && j.currentDate.Equal(today) {
		return nil
	}

	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return fmt.Errorf("failed to close previous journal file: %w", err)
		}
		j.file = nil
	}

	fileName := j.fileNameFor(today)
	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal file %s: %w", fileName, err)
	}

	j.file = file
	j.currentDate = today
	return nil
}

// AddEntry appends an entry as one JSON line.
func (j *Journal) AddEntry(command, bundle, details string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.ensureCorrectFileOpen(); err != nil {
		return err
	}

	line, err := json.Marshal(JournalEntry{
		Timestamp: j.now(),
		Command:   command,
		Bundle:    bundle,
		Details:   details,
	})
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write to journal file: %w", err)
	}
	return nil
}

// CleanupOldJournals removes journal files older than the retention period.
// A retention of zero or less keeps everything.
func (j *Journal) CleanupOldJournals() error {
	if j.retentionDays <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -j.retentionDays)
	matches, err := filepath.Glob(j.baseFilePath + "_*.journal")
	if err != nil {
		return fmt.Errorf("failed to list journal files: %w", err)
	}
	prefix := filepath.Base(j.baseFilePath) + "_"
	for _, match := range matches {
		dateStr := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), prefix), ".journal")
		day, err := time.Parse(journalDateLayout, dateStr)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(match); err != nil {
				return fmt.Errorf("failed to remove journal file %s: %w", match, err)
			}
		}
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return fmt.Errorf("failed to close journal file: %w", err)
		}
		j.file = nil
	}
	return nil
}
