package assets

import (
	"errors"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

var (
	ErrNoEntryPoints = errors.New("no entry points found in bundle")
	ErrBuildFailed   = errors.New("esbuild failed with errors")
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	Bytes      int          `json:"bytes"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

// Diagnostic is an esbuild message flattened for JSON responses and CLI output
type Diagnostic struct {
	Text   string `json:"text"`
	Plugin string `json:"plugin,omitempty"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return d.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Text)
}

func toDiagnostics(msgs []api.Message) []Diagnostic {
	diags := make([]Diagnostic, 0, len(msgs))
	for _, msg := range msgs {
		d := Diagnostic{Text: msg.Text, Plugin: msg.PluginName}
		if msg.Location != nil {
			d.File = msg.Location.File
			d.Line = msg.Location.Line
			d.Column = msg.Location.Column
		}
		diags = append(diags, d)
	}
	return diags
}

// Result is the outcome of bundling a preview bundle
type Result struct {
	Metadata *BuildMetadata
	Warnings []Diagnostic
	Errors   []Diagnostic
}

// Scripts returns the ordered list of output paths needed for the given entry module,
// the entry's own output first
func (r *Result) Scripts(entry string) ([]string, error) {
	if r.Metadata == nil {
		return nil, errors.New("build produced no metadata")
	}

	for outputPath, info := range r.Metadata.Outputs {
		if info.EntryPoint != namespace+":"+entry {
			continue
		}
		scripts := []string{"/" + outputPath}
		visited := map[string]bool{outputPath: true}
		r.addDependencies(info, &scripts, visited)
		return scripts, nil
	}

	return nil, fmt.Errorf("entrypoint %s not found in metadata", entry)
}

func (r *Result) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, "/"+imp.Path)

		if chunkInfo, exists := r.Metadata.Outputs[imp.Path]; exists {
			r.addDependencies(chunkInfo, scripts, visited)
		}
	}
}
