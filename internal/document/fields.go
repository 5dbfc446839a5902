package document

import "github.com/tidwall/gjson"

// Field is the projection of a component used to map form inputs onto
// table columns.
type Field struct {
	Key   string
	Label string
	Type  string
}

// Fields lists the top level components of a stored document without
// decoding it. Malformed input yields nothing.
func Fields(raw string) []Field {
	if raw == "" || !gjson.Valid(raw) {
		return nil
	}

	var fields []Field
	gjson.Get(raw, "components").ForEach(func(_, c gjson.Result) bool {
		if !c.IsObject() {
			return true
		}
		fields = append(fields, Field{
			Key:   c.Get("key").String(),
			Label: c.Get("label").String(),
			Type:  c.Get("type").String(),
		})
		return true
	})
	return fields
}

// Keys lists the keys of the top level components of a stored document.
func Keys(raw string) []string {
	if raw == "" || !gjson.Valid(raw) {
		return nil
	}

	var keys []string
	for _, k := range gjson.Get(raw, "components.#.key").Array() {
		keys = append(keys, k.String())
	}
	return keys
}
