package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

var ErrInvalidBundle = errors.New("invalid bundle")

// Decode parses a bundle document of the form
//
//	{"type": "...", "modules": {"/path": {"fpath": "/path", "code": "...", "entry": 1}}}
//
// Module order follows the document. An empty or null document decodes to a nil bundle.
func Decode(data []byte) (*Bundle, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidBundle)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidBundle)
	}

	b := New("")

	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "type":
			if value.Type != gjson.String && value.Type != gjson.Null {
				err = fmt.Errorf("%w: type must be a string", ErrInvalidBundle)
				return false
			}
			b.Kind = value.String()
		case "modules":
			err = decodeModules(b.Modules, value)
		default:
			b.Extra = setField(b.Extra, Field{Key: key.String(), Raw: value.Raw})
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

func decodeModules(modules *Modules, value gjson.Result) error {
	if value.Type == gjson.Null {
		return nil
	}
	if !value.IsObject() {
		return fmt.Errorf("%w: modules must be an object", ErrInvalidBundle)
	}

	var err error
	value.ForEach(func(key, raw gjson.Result) bool {
		path := key.String()
		if !raw.IsObject() {
			err = fmt.Errorf("%w: module %s must be an object", ErrInvalidBundle, path)
			return false
		}

		code := raw.Get("code")
		if code.Exists() && code.Type != gjson.String {
			err = fmt.Errorf("%w: module %s code must be a string", ErrInvalidBundle, path)
			return false
		}

		modules.Set(&Module{
			Path:  path,
			Code:  code.String(),
			Entry: isEntry(raw.Get("entry")),
		})
		return true
	})

	return err
}

// setField replaces a repeated key in place, so the last value wins at the first position
func setField(fields []Field, f Field) []Field {
	for i := range fields {
		if fields[i].Key == f.Key {
			fields[i] = f
			return fields
		}
	}
	return append(fields, f)
}

// entry is 1 in documents produced by the widget, true from some generators
func isEntry(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	default:
		return false
	}
}

// Encode writes the bundle in document order. A nil bundle encodes as null.
func Encode(b *Bundle, indent bool) ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}

	buf := new(bytes.Buffer)
	buf.WriteByte('{')

	if err := writeMember(buf, "type", b.Kind); err != nil {
		return nil, err
	}

	buf.WriteString(`,"modules":{`)
	var err error
	first := true
	b.Modules.Each(func(mod *Module) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		err = writeModule(buf, mod)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')

	for _, field := range b.Extra {
		buf.WriteByte(',')
		if err := writeString(buf, field.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		buf.WriteString(field.Raw)
	}

	buf.WriteByte('}')

	if indent {
		return pretty.Pretty(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

func writeModule(buf *bytes.Buffer, mod *Module) error {
	if err := writeString(buf, mod.Path); err != nil {
		return err
	}
	buf.WriteString(":{")
	if err := writeMember(buf, "fpath", mod.Path); err != nil {
		return err
	}
	buf.WriteByte(',')
	if err := writeMember(buf, "code", mod.Code); err != nil {
		return err
	}
	if mod.Entry {
		buf.WriteString(`,"entry":1`)
	}
	buf.WriteByte('}')
	return nil
}

func writeMember(buf *bytes.Buffer, key, value string) error {
	if err := writeString(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return writeString(buf, value)
}

// writeString quotes s as a JSON string without HTML escaping, so markup in
// module sources stays readable.
func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}
