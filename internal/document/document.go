// Package document reads and writes form documents: a JSON object whose
// "components" array lists the inputs of the form, in order.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"

	"github.com/golang/glog"
)

// Component is one input of the form. Its shape belongs to the builder;
// only a few well known keys are interpreted here.
type Component map[string]any

func (c Component) str(name string) string {
	s, _ := c[name].(string)
	return s
}

// Key is the data key the component submits under.
func (c Component) Key() string { return c.str("key") }

// Type is the component type ("textfield", "number", ...).
func (c Component) Type() string { return c.str("type") }

// Label is the human readable label.
func (c Component) Label() string { return c.str("label") }

// Document is a parsed form. Top level members other than "components" are
// kept untouched in Attrs.
type Document struct {
	Components []Component
	Attrs      map[string]json.RawMessage
}

// New builds a document from components.
func New(components ...Component) *Document {
	return &Document{Components: components}
}

// Empty returns a document without components or attributes.
func Empty() *Document {
	return &Document{}
}

// IsEmpty reports whether d carries nothing worth persisting.
func (d *Document) IsEmpty() bool {
	return d == nil || (len(d.Components) == 0 && len(d.Attrs) == 0)
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	d.Components = nil
	if c, ok := raw["components"]; ok {
		dec := json.NewDecoder(bytes.NewReader(c))
		dec.UseNumber()

		var components []Component
		if err := dec.Decode(&components); err != nil {
			return fmt.Errorf("components: %w", err)
		}
		d.Components = components
		delete(raw, "components")
	}

	d.Attrs = nil
	if len(raw) > 0 {
		d.Attrs = raw
	}
	return nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Attrs)+1)
	for k, v := range d.Attrs {
		out[k] = v
	}

	components := d.Components
	if components == nil {
		components = []Component{}
	}
	out["components"] = components

	return json.Marshal(out)
}

// Parse decodes a stored document. It never fails: an unset, malformed or
// non-object value yields an empty document.
func Parse(raw string) *Document {
	if raw == "" {
		return Empty()
	}

	d := &Document{}
	if err := json.Unmarshal([]byte(raw), d); err != nil {
		glog.V(1).Infof("[document]malformed form json, using an empty form: %v", err)
		return Empty()
	}
	return d
}

// Serialize encodes d for storage. An empty document is stored as null.
func Serialize(d *Document) (*string, error) {
	if d.IsEmpty() {
		return nil, nil
	}

	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("serialize form: %w", err)
	}
	s := string(b)
	return &s, nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}

	c := &Document{}
	if d.Components != nil {
		c.Components = make([]Component, len(d.Components))
		for i, comp := range d.Components {
			c.Components[i] = cloneValue(comp).(map[string]any)
		}
	}
	if d.Attrs != nil {
		c.Attrs = make(map[string]json.RawMessage, len(d.Attrs))
		for k, v := range d.Attrs {
			c.Attrs[k] = bytes.Clone(v)
		}
	}
	return c
}

// Keys returns the component keys in order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}

	keys := make([]string, 0, len(d.Components))
	for _, c := range d.Components {
		keys = append(keys, c.Key())
	}
	return keys
}

// Equal reports whether a and b are structurally equal. Nil and empty
// documents are equal.
func Equal(a, b *Document) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return a.IsEmpty() && b.IsEmpty()
	}

	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var va, vb any
	if json.Unmarshal(ja, &va) != nil || json.Unmarshal(jb, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Component:
		return cloneValue(map[string]any(t))
	case map[string]any:
		m := maps.Clone(t)
		for k, e := range m {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
