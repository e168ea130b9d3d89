// Package history persists per-lane conversation history so successive
// builder runs on the same lane share context.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/patchsmith/patchsmith/pkg/provider"
)

// ContextManager is the collaborator contract the builder runs against.
// Absence of a manager simply means no history is prepended or recorded.
type ContextManager interface {
	// Prepare returns the prior messages recorded for a lane.
	Prepare(laneID string) ([]provider.Message, error)

	// Append records a message on a lane.
	Append(laneID string, msg provider.Message) error
}

// FileLanes stores lane history as JSON files under
// <root>/.patchsmith/lanes/.
type FileLanes struct {
	root string
}

// NewFileLanes creates a file-backed lane store.
func NewFileLanes(root string) *FileLanes {
	return &FileLanes{root: root}
}

var laneIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func (l *FileLanes) lanePath(laneID string) (string, error) {
	if !laneIDRe.MatchString(laneID) {
		return "", fmt.Errorf("invalid lane id %q", laneID)
	}
	return filepath.Join(l.root, ".patchsmith", "lanes", laneID+".json"), nil
}

// Prepare reads the lane's messages; a missing lane is empty.
func (l *FileLanes) Prepare(laneID string) ([]provider.Message, error) {
	path, err := l.lanePath(laneID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lane %s: %w", laneID, err)
	}
	var messages []provider.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse lane %s: %w", laneID, err)
	}
	return messages, nil
}

// Append adds a message to the lane, creating it if needed.
func (l *FileLanes) Append(laneID string, msg provider.Message) error {
	path, err := l.lanePath(laneID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create lane directory: %w", err)
	}

	messages, err := l.Prepare(laneID)
	if err != nil {
		return err
	}
	messages = append(messages, msg)

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode lane %s: %w", laneID, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write lane %s: %w", laneID, err)
	}
	return nil
}

// FilterSystemRole drops system-role entries from a history slice. The
// builder replays only user and assistant turns in patch_json mode so a
// prior run's schema instructions are not re-injected.
func FilterSystemRole(messages []provider.Message) []provider.Message {
	filtered := make([]provider.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}
