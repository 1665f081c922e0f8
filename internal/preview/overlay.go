package preview

import (
	"github.com/wolfeidau/gravitypreview/internal/bundle"
)

type phase int

const (
	// beforeProjection overlays exist before the allow-list is applied
	beforeProjection phase = iota
	// afterProjection overlays are added to the projected set
	afterProjection
)

// overlay forces the module at path. build receives the module currently stored
// there, or nil.
type overlay struct {
	path  string
	phase phase
	build func(prev *bundle.Module, pages []string) (*bundle.Module, error)
}

var overlays = []overlay{
	{path: appPath, phase: beforeProjection, build: buildEntry},
	{path: shimsPath, phase: beforeProjection, build: fixed(shimsSource, false)},
	{path: manifestPath, phase: beforeProjection, build: buildManifest},
	{path: routesPath, phase: afterProjection, build: replaceCode(routesSource)},
	{path: globalCSSPath, phase: afterProjection, build: fixed(globalCSSSource, false)},
	{path: indexHTMLPath, phase: afterProjection, build: fixed(indexHTMLSource, false)},
	{path: indexLessPath, phase: afterProjection, build: fixed(indexLessSource, false)},
	{path: htmlScriptPath, phase: afterProjection, build: fixed(htmlScriptSource, true)},
}

func applyOverlays(modules *bundle.Modules, p phase, pages []string) error {
	for _, o := range overlays {
		if o.phase != p {
			continue
		}
		mod, err := o.build(modules.Get(o.path), pages)
		if err != nil {
			return err
		}
		mod.Path = o.path
		modules.Set(mod)
	}
	return nil
}

// fixed discards whatever was at the path
func fixed(code string, entry bool) func(*bundle.Module, []string) (*bundle.Module, error) {
	return func(*bundle.Module, []string) (*bundle.Module, error) {
		return &bundle.Module{Code: code, Entry: entry}, nil
	}
}

// replaceCode keeps the existing module's flags and swaps its source
func replaceCode(code string) func(*bundle.Module, []string) (*bundle.Module, error) {
	return func(prev *bundle.Module, _ []string) (*bundle.Module, error) {
		return withCode(prev, code), nil
	}
}

func buildEntry(prev *bundle.Module, pages []string) (*bundle.Module, error) {
	var page string
	if len(pages) > 0 {
		page = pages[0]
	}
	return withCode(prev, entrySource(page)), nil
}

func buildManifest(prev *bundle.Module, _ []string) (*bundle.Module, error) {
	var original string
	if prev != nil {
		original = prev.Code
	}

	code, err := mergeManifest(original, prev != nil)
	if err != nil {
		return nil, err
	}

	return withCode(prev, code), nil
}

func withCode(prev *bundle.Module, code string) *bundle.Module {
	mod := &bundle.Module{Code: code}
	if prev != nil {
		mod.Entry = prev.Entry
	}
	return mod
}
