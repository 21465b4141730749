// Package config loads the host configuration.
//
// Configuration is written in CUE and unified with an embedded schema that
// supplies defaults and rejects unknown fields:
//
//	tickRate: "16ms"
//	database: "tickhost.db"
//	scripts: [
//		{name: "menu", source: "scripts/menu.js", interval: "100ms"},
//	]
//
// Durations are Go duration strings. Relative script sources resolve
// against the directory of the config file. The TICKHOST_DB environment
// variable overrides the database path.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tickhost/internal/script"
)

//go:embed schema.cue
var schemaCUE string

// EnvDatabase overrides the database path when set.
const EnvDatabase = "TICKHOST_DB"

// Config is the validated host configuration.
type Config struct {
	// Path is the file the configuration was loaded from, if any.
	Path        string
	TickRate    time.Duration
	JoinTimeout time.Duration
	Database    string
	Keys        script.KeyBindings
	Scripts     []Script
}

// Script is one configured script.
type Script struct {
	Name     string
	Source   string
	Interval time.Duration
}

// ValidationError is a configuration error with its CUE position.
type ValidationError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// fileConfig mirrors #Config for decoding.
type fileConfig struct {
	TickRate    string `json:"tickRate"`
	JoinTimeout string `json:"joinTimeout"`
	Database    string `json:"database"`
	Keys        struct {
		Activate string `json:"activate"`
		Back     string `json:"back"`
		Left     string `json:"left"`
		Right    string `json:"right"`
		Up       string `json:"up"`
		Down     string `json:"down"`
	} `json:"keys"`
	Scripts []struct {
		Name     string `json:"name"`
		Source   string `json:"source"`
		Interval string `json:"interval"`
	} `json:"scripts"`
}

// Load reads and validates the configuration at path, then applies the
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	baseDir := filepath.Dir(path)
	for i := range cfg.Scripts {
		if !filepath.IsAbs(cfg.Scripts[i].Source) {
			cfg.Scripts[i].Source = filepath.Join(baseDir, cfg.Scripts[i].Source)
		}
	}

	if db, ok := os.LookupEnv(EnvDatabase); ok {
		cfg.Database = db
	}
	return cfg, nil
}

// Parse validates CUE source against the schema. filename is used in error
// positions only.
func Parse(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, convertCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEError(err)
	}

	var raw fileConfig
	if err := v.Decode(&raw); err != nil {
		return nil, convertCUEError(err)
	}

	return build(raw)
}

// Default returns the configuration of an empty file.
func Default() *Config {
	cfg, err := Parse(nil, "default.cue")
	if err != nil {
		panic(fmt.Sprintf("config: default configuration invalid: %v", err))
	}
	return cfg
}

func build(raw fileConfig) (*Config, error) {
	var errs []error

	cfg := &Config{
		Database: raw.Database,
		Keys: script.KeyBindings{
			Activate: script.Key(raw.Keys.Activate),
			Back:     script.Key(raw.Keys.Back),
			Left:     script.Key(raw.Keys.Left),
			Right:    script.Key(raw.Keys.Right),
			Up:       script.Key(raw.Keys.Up),
			Down:     script.Key(raw.Keys.Down),
		},
	}

	var err error
	if cfg.TickRate, err = parseDuration("tickRate", raw.TickRate); err != nil {
		errs = append(errs, err)
	} else if cfg.TickRate <= 0 {
		errs = append(errs, &ValidationError{Path: "tickRate", Message: "must be positive"})
	}
	if cfg.JoinTimeout, err = parseDuration("joinTimeout", raw.JoinTimeout); err != nil {
		errs = append(errs, err)
	} else if cfg.JoinTimeout <= 0 {
		errs = append(errs, &ValidationError{Path: "joinTimeout", Message: "must be positive"})
	}

	seen := make(map[string]bool)
	for i, rs := range raw.Scripts {
		field := fmt.Sprintf("scripts[%d]", i)
		if seen[rs.Name] {
			errs = append(errs, &ValidationError{Path: field + ".name", Message: fmt.Sprintf("duplicate script name %q", rs.Name)})
			continue
		}
		seen[rs.Name] = true

		interval, err := parseDuration(field+".interval", rs.Interval)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if interval < 0 {
			errs = append(errs, &ValidationError{Path: field + ".interval", Message: "must not be negative"})
			continue
		}
		cfg.Scripts = append(cfg.Scripts, Script{
			Name:     rs.Name,
			Source:   rs.Source,
			Interval: interval,
		})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &ValidationError{Path: field, Message: fmt.Sprintf("invalid duration %q", s)}
	}
	return d, nil
}

// convertCUEError flattens a CUE error list into ValidationErrors so that
// callers see one positioned line per problem.
func convertCUEError(err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	out := make([]error, 0, len(list))
	for _, e := range list {
		format, args := e.Msg()
		out = append(out, &ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Pos:     e.Position(),
		})
	}
	return errors.Join(out...)
}
