package preview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

var ErrInvalidManifest = errors.New("invalid package manifest")

const (
	manifestName    = "demo"
	manifestVersion = "1.0.0"
)

type dependency struct {
	name string
	raw  string // JSON encoded version constraint
}

// pinnedDependencies are the framework versions the sandbox runtime supports
func pinnedDependencies() []dependency {
	return []dependency{
		{name: "react", raw: `"^16.8.3"`},
		{name: "react-dom", raw: `"^16.8.3"`},
	}
}

// mergeManifest builds the preview package.json. Dependencies declared by the
// original manifest override the pinned ones; an override keeps the pinned
// entry's position.
func mergeManifest(original string, present bool) (string, error) {
	deps := pinnedDependencies()

	if present {
		if !gjson.Valid(original) {
			return "", fmt.Errorf("%w: /package.json is not valid JSON", ErrInvalidManifest)
		}

		declared := gjson.Get(original, "dependencies")
		if declared.IsObject() {
			declared.ForEach(func(key, value gjson.Result) bool {
				deps = setDependency(deps, key.String(), string(pretty.Ugly([]byte(value.Raw))))
				return true
			})
		}
	}

	return encodeManifest(deps)
}

func setDependency(deps []dependency, name, raw string) []dependency {
	for i := range deps {
		if deps[i].name == name {
			deps[i].raw = raw
			return deps
		}
	}
	return append(deps, dependency{name: name, raw: raw})
}

func encodeManifest(deps []dependency) (string, error) {
	buf := new(bytes.Buffer)

	buf.WriteString(`{"name":`)
	if err := quote(buf, manifestName); err != nil {
		return "", err
	}
	buf.WriteString(`,"version":`)
	if err := quote(buf, manifestVersion); err != nil {
		return "", err
	}
	buf.WriteString(`,"dependencies":{`)
	for i, dep := range deps {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := quote(buf, dep.name); err != nil {
			return "", err
		}
		buf.WriteByte(':')
		buf.WriteString(dep.raw)
	}
	buf.WriteString("}}")

	return buf.String(), nil
}

func quote(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
