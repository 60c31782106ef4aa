package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads synthesis prompts from user-editable files on disk,
// falling back to the defaults it was created with.
//
// The directory is seeded on first Load, not in the constructor. Edited
// files are picked up on the next Load by comparing modification times,
// so a long-running server sees changes without a restart.
type PromptStore struct {
	dir      string
	defaults map[string]string

	seedOnce sync.Once
	seedErr  error

	mu    sync.Mutex
	cache map[string]cachedPrompt
}

type cachedPrompt struct {
	text    string
	modTime time.Time
}

// NewPromptStore creates a new file-based prompt store seeded with
// defaults. If promptDir is empty, defaults to ~/.paperlens/prompts/.
func NewPromptStore(promptDir string, defaults map[string]string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".paperlens", "prompts")
	}

	seeded := make(map[string]string, len(defaults))
	for k, v := range defaults {
		seeded[k] = v
	}
	return &PromptStore{
		dir:      promptDir,
		defaults: seeded,
		cache:    make(map[string]cachedPrompt),
	}, nil
}

// Load returns the prompt for name. A missing or unreadable file falls
// back to the default; a name with neither is an error.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(func() { s.seedErr = s.seed() })

	def, hasDefault := s.defaults[name]
	text, err := s.read(name)
	switch {
	case err == nil:
		return text, nil
	case hasDefault:
		return def, nil
	case s.seedErr != nil:
		return "", fmt.Errorf("load prompt %q: %w", name, errors.Join(err, s.seedErr))
	default:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
}

// Reload drops every cached prompt.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]cachedPrompt)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

// read returns the file's trimmed content, reusing the cached copy while
// the modification time is unchanged.
func (s *PromptStore) read(name string) (string, error) {
	info, err := os.Stat(s.path(name))
	if err != nil {
		s.mu.Lock()
		delete(s.cache, name)
		s.mu.Unlock()
		return "", err
	}

	s.mu.Lock()
	c, ok := s.cache[name]
	s.mu.Unlock()
	if ok && c.modTime.Equal(info.ModTime()) {
		return c.text, nil
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))

	s.mu.Lock()
	s.cache[name] = cachedPrompt{text: text, modTime: info.ModTime()}
	s.mu.Unlock()
	return text, nil
}

// seed writes every default that has no file yet, plus a README listing
// them. Existing files are never overwritten.
func (s *PromptStore) seed() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}

	names := make([]string, 0, len(s.defaults))
	for name := range s.defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writeIfMissing(s.path(name), s.defaults[name]+"\n"); err != nil {
			return fmt.Errorf("seed prompt %q: %w", name, err)
		}
	}
	return writeIfMissing(filepath.Join(s.dir, "README.md"), promptReadme(names))
}

func writeIfMissing(path, content string) error {
	_, err := os.Stat(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func promptReadme(names []string) string {
	var b strings.Builder
	b.WriteString("# Paperlens Prompts\n\n")
	b.WriteString("Each file holds one prompt used when answering questions.\n\n")
	for _, name := range names {
		switch name {
		case driven.PromptSystem:
			fmt.Fprintf(&b, "- `%s.txt` - instructions given to the model on every answer\n", name)
		default:
			fmt.Fprintf(&b, "- `%s.txt` - instructions for %s questions\n", name, strings.ReplaceAll(name, "_", " "))
		}
	}
	b.WriteString("\nAnswers cite evidence as [n]; keep that instruction in system.txt or\n")
	b.WriteString("citations will not be recognised. Delete a file to restore its default.\n")
	b.WriteString("Edits take effect on the next question.\n")
	return b.String()
}
