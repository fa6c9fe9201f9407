package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

const promptsReadme = `# Submittal Review Prompts

This directory contains the prompts used by the review workflow.

## Files

- ` + "`analyze_system.txt`" + ` - System prompt for the Analyze stage
- ` + "`decide_instructions.txt`" + ` - Decision criteria and JSON contract for the Decide stage

## Customisation

Edit any file to customise reviewer behaviour. Edits are picked up by the
next review, including on a running server. Delete a file to restore the
built-in prompt on next use.

The Decide stage validates the model output strictly. Keep the JSON field
names in ` + "`decide_instructions.txt`" + ` unchanged or reviews will fail.
`

// PromptStore serves prompt templates from <dir>/<name>.txt. The directory
// is seeded with the built-in prompts on first use; existing files are never
// overwritten. A cached prompt is re-read when its file changes on disk.
type PromptStore struct {
	dir      string
	defaults map[string]string

	mu      sync.Mutex
	seeded  bool
	seedErr error
	cache   map[string]promptFile
}

type promptFile struct {
	text    string
	size    int64
	modTime time.Time
}

// NewPromptStore creates a prompt store. An empty dir means
// ~/.submittal/prompts. No I/O happens until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName, "prompts")
	}

	return &PromptStore{
		dir:      dir,
		defaults: driven.DefaultPrompts(),
		cache:    make(map[string]promptFile),
	}, nil
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the prompt template for name. A missing, unreadable or
// empty file falls back to the built-in prompt of the same name.
func (s *PromptStore) Load(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fallback, known := s.defaults[name]
	if err := s.seed(); err != nil {
		if known {
			return fallback, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	text, err := s.read(name)
	switch {
	case err == nil && text != "":
		return text, nil
	case known:
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Prompt %s unreadable, using built-in: %v", name, err)
		}
		return fallback, nil
	case err == nil:
		return "", fmt.Errorf("load prompt %q: file is empty", name)
	default:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
}

// Reload drops every cached prompt.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]promptFile)
	s.mu.Unlock()
}

// read returns the trimmed file content, served from cache while the
// file's size and modification time are unchanged. Caller holds mu.
func (s *PromptStore) read(name string) (string, error) {
	path := filepath.Join(s.dir, name+".txt")
	info, err := os.Stat(path)
	if err != nil {
		delete(s.cache, name)
		return "", err
	}

	if c, ok := s.cache[name]; ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
		return c.text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	s.cache[name] = promptFile{text: text, size: info.Size(), modTime: info.ModTime()}
	return text, nil
}

// seed creates the directory, the default prompt files and a README.
// It runs once; a failure is remembered. Caller holds mu.
func (s *PromptStore) seed() error {
	if s.seeded {
		return s.seedErr
	}
	s.seeded = true

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return s.seedErr
	}

	files := map[string]string{"README.md": promptsReadme}
	for name, content := range s.defaults {
		files[name+".txt"] = content
	}
	for file, content := range files {
		if err := writeIfAbsent(filepath.Join(s.dir, file), content); err != nil {
			s.seedErr = fmt.Errorf("create %s: %w", file, err)
			return s.seedErr
		}
	}
	return nil
}

func writeIfAbsent(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
