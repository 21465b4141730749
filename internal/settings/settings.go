// Package settings implements the per-script persisted settings file.
//
// A settings file lives next to the script source with the extension
// replaced by ".yaml". It holds sections of string key/value pairs:
//
//	player:
//	  name: crosshair
//	  speed: 2.5
//	debug:
//	  enabled: true
//
// Values are kept as strings and converted on read, falling back to the
// caller's default when the key is missing or malformed.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Extension is the file extension of settings files.
const Extension = ".yaml"

// PathFor derives the settings path of a script source.
//
//	PathFor("scripts/menu.js") == "scripts/menu.yaml"
func PathFor(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + Extension
}

// File is an in-memory settings file bound to a path.
// Safe for concurrent use.
type File struct {
	mu       sync.RWMutex
	path     string
	sections map[string]map[string]string
}

// New creates an empty settings file bound to path. Nothing is written
// until Save.
func New(path string) *File {
	return &File{
		path:     path,
		sections: make(map[string]map[string]string),
	}
}

// Load reads the settings file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	raw := make(map[string]map[string]any)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	f := New(path)
	for section, values := range raw {
		m := make(map[string]string, len(values))
		for key, value := range values {
			if value == nil {
				m[key] = ""
				continue
			}
			m[key] = fmt.Sprint(value)
		}
		f.sections[section] = m
	}
	return f, nil
}

// Open loads path if it exists, otherwise returns an empty file bound to it.
func Open(path string) (*File, error) {
	f, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(path), nil
	}
	return f, err
}

// Path returns the file the settings are bound to.
func (f *File) Path() string {
	return f.path
}

// Sections returns the section names in sorted order.
func (f *File) Sections() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.sections))
	for name := range f.sections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Keys returns the keys of a section in sorted order.
func (f *File) Keys(section string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	values := f.sections[section]
	out := make([]string, 0, len(values))
	for key := range values {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the raw value of a key.
func (f *File) Lookup(section, key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.sections[section][key]
	return v, ok
}

// GetString returns the value or def.
func (f *File) GetString(section, key, def string) string {
	if v, ok := f.Lookup(section, key); ok {
		return v
	}
	return def
}

// GetInt returns the value parsed as an int, or def.
func (f *File) GetInt(section, key string, def int) int {
	v, ok := f.Lookup(section, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// GetFloat returns the value parsed as a float64, or def.
func (f *File) GetFloat(section, key string, def float64) float64 {
	v, ok := f.Lookup(section, key)
	if !ok {
		return def
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return n
}

// GetBool returns the value parsed as a bool, or def.
func (f *File) GetBool(section, key string, def bool) bool {
	v, ok := f.Lookup(section, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// GetDuration returns the value parsed with time.ParseDuration, or def.
func (f *File) GetDuration(section, key string, def time.Duration) time.Duration {
	v, ok := f.Lookup(section, key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}

// SetValue stores value, formatted with fmt.Sprint.
func (f *File) SetValue(section, key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.sections[section]
	if !ok {
		m = make(map[string]string)
		f.sections[section] = m
	}
	m[key] = fmt.Sprint(value)
}

// Delete removes a key. Empty sections are dropped.
func (f *File) Delete(section, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.sections[section]
	if !ok {
		return
	}
	delete(m, key)
	if len(m) == 0 {
		delete(f.sections, section)
	}
}

// Save writes the file, creating parent directories as needed.
func (f *File) Save() error {
	f.mu.RLock()
	data, err := yaml.Marshal(f.sections)
	f.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure settings dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", f.path, err)
	}
	return nil
}
