// Package changetracker records the before/after of every applied patch
// operation and renders human-readable diffs.
package changetracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ANSI colors for diff rendering.
const (
	redColor   = "\x1b[31m"
	greenColor = "\x1b[32m"
	resetColor = "\x1b[0m"
)

// changesFile is the workspace-relative revision log location.
const changesFile = ".patchsmith/changes.json"

// Revision is one recorded file mutation.
type Revision struct {
	File      string    `json:"file"`
	Action    string    `json:"action"`
	Before    string    `json:"before,omitempty"`
	After     string    `json:"after,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker appends applied changes to the workspace revision log.
type Tracker struct {
	root string
}

// NewTracker creates a tracker for the given workspace root.
func NewTracker(root string) *Tracker {
	return &Tracker{root: root}
}

// Record appends a revision to the log file.
func (t *Tracker) Record(file, action, before, after string) error {
	path := filepath.Join(t.root, changesFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create change log directory: %w", err)
	}

	revisions, err := t.Revisions()
	if err != nil {
		return err
	}
	revisions = append(revisions, Revision{
		File:      file,
		Action:    action,
		Before:    before,
		After:     after,
		Timestamp: time.Now(),
	})

	data, err := json.MarshalIndent(revisions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode change log: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write change log: %w", err)
	}
	return nil
}

// Revisions reads the recorded revision log; a missing log is empty.
func (t *Tracker) Revisions() ([]Revision, error) {
	data, err := os.ReadFile(filepath.Join(t.root, changesFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read change log: %w", err)
	}
	var revisions []Revision
	if err := json.Unmarshal(data, &revisions); err != nil {
		return nil, fmt.Errorf("failed to parse change log: %w", err)
	}
	return revisions, nil
}

// RenderDiff produces a colored line diff between two versions of a file.
func RenderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	beforeRunes, afterRunes, lines := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(beforeRunes, afterRunes, false), lines)

	var b strings.Builder
	for _, d := range diffs {
		for _, line := range splitKeepNonEmpty(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				b.WriteString(redColor + "-" + line + resetColor + "\n")
			case diffmatchpatch.DiffInsert:
				b.WriteString(greenColor + "+" + line + resetColor + "\n")
			default:
				b.WriteString(" " + line + "\n")
			}
		}
	}
	return b.String()
}

func splitKeepNonEmpty(text string) []string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}
