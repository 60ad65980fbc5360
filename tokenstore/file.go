package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileEntry struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expiresAt"`
}

type fileContents struct {
	Tokens map[string]fileEntry `json:"tokens"`
}

// File persists tokens as JSON on disk so short-lived CLI invocations can
// reuse a tenant access token. The file is written with 0600 permissions.
type File struct {
	Path string

	mu  sync.Mutex
	Now func() time.Time
}

// NewFile creates a file-backed store at path
func NewFile(path string) *File {
	return &File{Path: path, Now: time.Now}
}

// Get reads key from the file
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.read()
	if err != nil {
		return "", false, err
	}

	entry, ok := contents.Tokens[key]
	if !ok {
		return "", false, nil
	}
	if f.now().UnixMilli() >= entry.ExpiresAt {
		return "", false, nil
	}
	return entry.Value, true, nil
}

// Set writes key to the file, pruning expired entries on the way
func (f *File) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.read()
	if err != nil {
		return err
	}

	nowMs := f.now().UnixMilli()
	for k, entry := range contents.Tokens {
		if nowMs >= entry.ExpiresAt {
			delete(contents.Tokens, k)
		}
	}

	if ttl <= 0 {
		delete(contents.Tokens, key)
	} else {
		contents.Tokens[key] = fileEntry{
			Value:     value,
			ExpiresAt: f.now().Add(ttl).UnixMilli(),
		}
	}

	return f.write(contents)
}

func (f *File) read() (*fileContents, error) {
	contents := &fileContents{Tokens: map[string]fileEntry{}}

	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return contents, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if len(b) == 0 {
		return contents, nil
	}

	if err := json.Unmarshal(b, contents); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if contents.Tokens == nil {
		contents.Tokens = map[string]fileEntry{}
	}
	return contents, nil
}

func (f *File) write(contents *fileContents) error {
	if err := EnsureParentDir(f.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}

	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (f *File) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// DefaultFilePath returns $XDG_CONFIG_HOME/lark-kit/tokens.json, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultFilePath() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, "lark-kit", "tokens.json")
}

// EnsureParentDir creates the parent directory of path with 0700 permissions
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
