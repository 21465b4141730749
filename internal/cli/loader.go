package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/tickhost/internal/config"
	"github.com/roach88/tickhost/internal/host"
	"github.com/roach88/tickhost/internal/jsscript"
)

// Issue is one configuration or script problem, positioned when CUE or
// goja knows where it is.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (i Issue) String() string {
	var loc string
	if i.File != "" {
		loc = fmt.Sprintf("%s:%d:%d: ", i.File, i.Line, i.Column)
	}
	if i.Path != "" {
		return loc + i.Path + ": " + i.Message
	}
	return loc + i.Message
}

// LoadResult is a configuration with its scripts compiled.
type LoadResult struct {
	Config      *config.Config
	Definitions []host.Definition
}

// LoadHost reads the configuration at path and compiles every script it
// names. All problems are collected; a nil result means the host cannot
// start.
func LoadHost(path string) (*LoadResult, []Issue, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, flattenIssues(err), nil
	}

	var issues []Issue
	defs := make([]host.Definition, 0, len(cfg.Scripts))
	for i, sc := range cfg.Scripts {
		src, err := jsscript.CompileFile(sc.Source)
		if err != nil {
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("scripts[%d].source", i),
				Message: err.Error(),
			})
			continue
		}
		defs = append(defs, host.Definition{
			Name:     sc.Name,
			Source:   sc.Source,
			Interval: sc.Interval,
			Setup:    src.Setup,
		})
	}
	if len(issues) > 0 {
		return nil, issues, nil
	}

	return &LoadResult{Config: cfg, Definitions: defs}, nil, nil
}

// flattenIssues unpacks joined config errors into one Issue each.
func flattenIssues(err error) []Issue {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []Issue
		for _, e := range joined.Unwrap() {
			out = append(out, flattenIssues(e)...)
		}
		return out
	}

	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		return []Issue{{Message: err.Error()}}
	}

	issue := Issue{Path: verr.Path, Message: verr.Message}
	if verr.Pos.IsValid() {
		issue.File = verr.Pos.Filename()
		issue.Line = verr.Pos.Line()
		issue.Column = verr.Pos.Column()
	}
	return []Issue{issue}
}

func issueStrings(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}
