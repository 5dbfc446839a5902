// Package scenario replays scripted host activity against a widget. A
// scenario is a YAML file listing host pushes and user actions, with
// expectations checked along the way.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AnatoleLucet/forms/internal/document"
	"github.com/AnatoleLucet/forms/internal/editor"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/mode"
)

type Scenario struct {
	Name string `yaml:"name"`
	// URL the widget is opened with, for its access parameters
	WidgetURL string `yaml:"widget_url"`
	// rows created before the widget starts; ids are assigned from 1
	Seed  []host.Row `yaml:"seed"`
	Steps []Step     `yaml:"steps"`
}

// Step is one host push or user action. Exactly one action field is set;
// Expect may accompany it or stand alone.
type Step struct {
	Options     *host.Settings `yaml:"options"`
	Records     []*host.Row    `yaml:"records"`
	Push        bool           `yaml:"push"`
	Record      host.RowID     `yaml:"record"`
	EditOptions bool           `yaml:"edit_options"`
	Edit        *Edit          `yaml:"edit"`
	Tab         editor.Tab     `yaml:"tab"`
	Select      host.RowID     `yaml:"select"`
	Create      bool           `yaml:"create"`

	Expect *Expect `yaml:"expect"`
}

// Edit is a change made in the builder.
type Edit struct {
	Add    document.Component `yaml:"add"`
	Remove string             `yaml:"remove"`
	// whole document as JSON
	Replace string `yaml:"replace"`
}

// Expect is checked once the step settled. Unset fields are not checked.
type Expect struct {
	Mode mode.Mode  `yaml:"mode"`
	Row  host.RowID `yaml:"row"`
	Tab  editor.Tab `yaml:"tab"`
	// component keys of the edited or viewed document
	Keys []string `yaml:"keys"`
	// component keys the renderer shows
	Rendered []string `yaml:"rendered"`
	// component keys stored in the table, by row
	Stored map[host.RowID][]string `yaml:"stored"`
	// substring of the mounted subtree failure
	Failure string `yaml:"failure"`
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		s.Options != nil,
		s.Records != nil,
		s.Push,
		s.Record != 0,
		s.EditOptions,
		s.Edit != nil,
		s.Tab != "",
		s.Select != 0,
		s.Create,
	} {
		if set {
			n++
		}
	}
	return n
}

// Load decodes a scenario. Unknown fields are rejected.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario is empty")
		}
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	for i, step := range sc.Steps {
		if n := step.actions(); n > 1 || (n == 0 && step.Expect == nil) {
			return nil, fmt.Errorf("step %d: expected one action, got %d", i+1, n)
		}
	}
	return &sc, nil
}

// LoadFile reads the scenario at path.
func LoadFile(path string) (*Scenario, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("scenario path is required")
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Load(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}
