package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Slot file names shared with the driver script
const (
	CommandFile  = "command.json"
	StatusFile   = "status.txt"
	ResponseFile = "response.json"
)

// FileMailbox exchanges slots as files in a directory shared with the driver
type FileMailbox struct {
	dir string
}

// NewFileMailbox creates a mailbox in dir, creating the directory if needed
func NewFileMailbox(dir string) (*FileMailbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create driver dir: %w", err)
	}
	return &FileMailbox{dir: dir}, nil
}

func (m *FileMailbox) path(name string) string {
	return filepath.Join(m.dir, name)
}

// PutCommand writes the command atomically so the driver never reads half a file
func (m *FileMailbox) PutCommand(_ context.Context, payload []byte) error {
	tmp, err := os.CreateTemp(m.dir, CommandFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp command file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write command: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close command file: %w", err)
	}
	if err := os.Rename(tmpName, m.path(CommandFile)); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}

func (m *FileMailbox) CommandPending(_ context.Context) (bool, error) {
	_, err := os.Stat(m.path(CommandFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (m *FileMailbox) TakeResponse(_ context.Context) ([]byte, bool, error) {
	data, ok, err := m.take(ResponseFile)
	return data, ok, err
}

func (m *FileMailbox) TakeStatus(_ context.Context) (string, bool, error) {
	data, ok, err := m.take(StatusFile)
	return strings.TrimSpace(string(data)), ok, err
}

func (m *FileMailbox) Reset(_ context.Context) error {
	for _, name := range []string{CommandFile, ResponseFile} {
		if err := os.Remove(m.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}
	}
	return nil
}

// take reads a slot file and deletes it. An empty file counts as not yet written.
func (m *FileMailbox) take(name string) ([]byte, bool, error) {
	p := m.path(name)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, false, nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to clear %s: %w", name, err)
	}
	return data, true, nil
}
