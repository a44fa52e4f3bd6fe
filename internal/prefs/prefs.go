// Package prefs keeps the labbcat CLI's per-user display settings: the watch
// view theme and how many matches a search fetches when no limit is given.
// They live in ~/.config/labbcat/prefs.toml, apart from config.toml, so the
// watch view can rewrite them without touching server credentials.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds the settings the CLI remembers between runs.
type Prefs struct {
	Theme string `toml:"theme"`
	// PageLength is the number of matches fetched per results page.
	PageLength int `toml:"page_length"`
}

const (
	defaultPrefsPath  = "~/.config/labbcat/prefs.toml"
	defaultTheme      = "Nightfox"
	defaultPageLength = 20
	maxPageLength     = 1000
)

func defaultPrefs() Prefs {
	return Prefs{Theme: defaultTheme, PageLength: defaultPageLength}
}

// normalized fills blanks with defaults and keeps PageLength within
// [1, maxPageLength].
func (p Prefs) normalized() Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	switch {
	case p.PageLength <= 0:
		p.PageLength = defaultPageLength
	case p.PageLength > maxPageLength:
		p.PageLength = maxPageLength
	}
	return p
}

// DefaultPath returns where preferences live when no path is given.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load returns the stored preferences. A missing, unreadable or corrupt
// file is not an error: preferences are cosmetic, so the defaults are used.
func Load(path string) (Prefs, error) {
	file, err := locate(path)
	if err != nil {
		return defaultPrefs(), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return defaultPrefs(), nil
	}

	stored := defaultPrefs()
	if err := toml.Unmarshal(data, &stored); err != nil {
		return defaultPrefs(), nil
	}
	return stored.normalized(), nil
}

// Save stores p at path. The file is replaced in one rename so a watch view
// quitting mid-write never leaves a truncated file behind.
func Save(path string, p Prefs) error {
	file, err := locate(path)
	if err != nil {
		return fmt.Errorf("prefs path: %w", err)
	}

	data, err := toml.Marshal(p.normalized())
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prefs dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("stage prefs: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		return fmt.Errorf("stage prefs: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("stage prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("store prefs %s: %w", file, err)
	}
	return nil
}

// locate turns path (or the default when blank) into an absolute file name,
// expanding a leading ~ to the home directory.
func locate(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		p = defaultPrefsPath
	}
	if rest, ok := strings.CutPrefix(p, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home dir: %w", err)
		}
		p = filepath.Join(home, rest)
	}
	return filepath.Abs(p)
}
