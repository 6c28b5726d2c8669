// Package script loads debugger scenarios written as YAML step lists.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Script is a named list of steps run against one target file.
type Script struct {
	Title       string `yaml:"name"`
	Target      string `yaml:"file"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`

	path string
}

// Step is one action and the fields it uses.
type Step struct {
	Action string `yaml:"action"`

	// Breakpoints.
	Line       int    `yaml:"line,omitempty"`
	Func       string `yaml:"func,omitempty"`
	As         string `yaml:"as,omitempty"`
	Breakpoint string `yaml:"breakpoint,omitempty"`

	// Stops.
	Reason string `yaml:"reason,omitempty"`

	// Thread and frame overrides. Empty means the ids captured by the
	// last wait.
	Thread string `yaml:"thread,omitempty"`
	Frame  string `yaml:"frame,omitempty"`

	// Variables and evaluation.
	Attrs      string `yaml:"attrs,omitempty"`
	Name       string `yaml:"name,omitempty"`
	Value      string `yaml:"value,omitempty"`
	Scope      string `yaml:"scope,omitempty"`
	Expression string `yaml:"expression,omitempty"`

	// Custom operations.
	Style    string `yaml:"style,omitempty"`
	Code     string `yaml:"code,omitempty"`
	Function string `yaml:"function,omitempty"`

	// Tracing.
	Enable  *bool `yaml:"enable,omitempty"`
	Disable bool  `yaml:"disable,omitempty"`
	Getter  bool  `yaml:"getter,omitempty"`
	Setter  bool  `yaml:"setter,omitempty"`
	Deleter bool  `yaml:"deleter,omitempty"`

	Expect Expect `yaml:"expect,omitempty"`
}

// Expect is one or more expected fragments. YAML may give a single string
// or a list.
type Expect []string

func (e *Expect) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = Expect{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*e = Expect(list)
		return nil
	default:
		return fmt.Errorf("line %d: expect must be a string or a list of strings", node.Line)
	}
}

// Load reads, parses and validates the script at path. A relative target
// file is resolved against the script's directory.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.path = path
	if s.Target != "" && !filepath.IsAbs(s.Target) {
		s.Target = filepath.Join(filepath.Dir(path), s.Target)
	}
	return s, nil
}

// Parse decodes and validates a script. Unknown fields are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ValidationError lists every problem found in a script.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid script:\n  " + strings.Join(e.Problems, "\n  ")
}

// Validate checks the target and every step.
func (s *Script) Validate() error {
	var problems []string
	if s.Target == "" {
		problems = append(problems, "file is required")
	}
	if len(s.Steps) == 0 {
		problems = append(problems, "at least one step is required")
	}
	named := map[string]bool{}
	for i, st := range s.Steps {
		act, ok := actions[st.Action]
		if !ok {
			problems = append(problems, fmt.Sprintf("step %d: unknown action %q (known: %s)",
				i+1, st.Action, strings.Join(ActionNames(), ", ")))
			continue
		}
		if act.validate != nil {
			if err := act.validate(st); err != nil {
				problems = append(problems, fmt.Sprintf("step %d (%s): %v", i+1, st.Action, err))
			}
		}
		if st.Breakpoint != "" && !named[st.Breakpoint] {
			problems = append(problems, fmt.Sprintf("step %d (%s): breakpoint %q is not defined by an earlier step",
				i+1, st.Action, st.Breakpoint))
		}
		if st.As != "" {
			named[st.As] = true
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Name identifies the script: its name field, else the script file name.
func (s *Script) Name() string {
	if s.Title != "" {
		return s.Title
	}
	if s.path != "" {
		return strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	}
	return "script"
}

// File is the debugged program.
func (s *Script) File() string {
	return s.Target
}

// Path is where the script was loaded from.
func (s *Script) Path() string {
	return s.path
}

// Describe summarizes a step on one line.
func (st Step) Describe() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	if st.Line > 0 {
		add("line", fmt.Sprint(st.Line))
	}
	add("func", st.Func)
	add("as", st.As)
	add("breakpoint", st.Breakpoint)
	add("reason", st.Reason)
	add("thread", st.Thread)
	add("frame", st.Frame)
	add("attrs", st.Attrs)
	add("name", st.Name)
	add("value", st.Value)
	add("scope", st.Scope)
	add("expression", st.Expression)
	add("style", st.Style)
	add("code", st.Code)
	add("function", st.Function)
	if st.Enable != nil {
		add("enable", fmt.Sprint(*st.Enable))
	}
	if len(st.Expect) > 0 {
		add("expect", strings.Join(lo.Map(st.Expect, func(s string, _ int) string {
			return fmt.Sprintf("%q", s)
		}), ","))
	}
	return strings.Join(parts, " ")
}

var errMissing = errors.New("missing")

func need(field string, ok bool) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w %s", errMissing, field)
}
