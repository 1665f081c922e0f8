// Package preview rewrites code generator bundles into bundles the riddle
// live-preview sandbox can run.
package preview

import (
	"regexp"
	"strings"

	"github.com/wolfeidau/gravitypreview/internal/bundle"
)

// TargetKind is the sandbox kind every normalized bundle is tagged with.
const TargetKind = "riddle"

const (
	appPath        = "/src/app.js"
	shimsPath      = "/src/shims.js"
	manifestPath   = "/package.json"
	routesPath     = "/src/routes.js"
	globalCSSPath  = "/src/global.css"
	indexHTMLPath  = "/src/index.html"
	indexLessPath  = "/src/index.less"
	htmlScriptPath = "/src/html.js"

	pagesPrefix = "/src/pages/"
)

// allowList is the infrastructure kept ahead of the page modules, in output order.
var allowList = []string{
	manifestPath,
	routesPath,
	appPath,
	"/src/constants.js",
	"/src/utils.js",
	"/src/i18n.js",
	globalCSSPath,
	"/src/index.js",
	shimsPath,
}

var (
	aliasImport = regexp.MustCompile(`import\s+([^\s]+)\s+from\s+['"]@/([^'"]+)['"]`)
	scssImport  = regexp.MustCompile(`import\s+([^\s]+)\s+from\s+['"]([^'"]+)\.scss['"]`)
)

// Normalize returns a new bundle shaped for the riddle sandbox. The input is not
// modified. A nil bundle yields nil. cacheToken is accepted for callers that key
// memoization on it and is otherwise ignored.
//
// The only failure is a /package.json that is present but not valid JSON, reported
// as ErrInvalidManifest.
func Normalize(b *bundle.Bundle, cacheToken any) (*bundle.Bundle, error) {
	if b == nil {
		return nil, nil
	}

	out := &bundle.Bundle{
		Modules: rewriteModules(b.Modules),
	}
	if len(b.Extra) > 0 {
		out.Extra = append([]bundle.Field(nil), b.Extra...)
	}

	pages := pagePaths(out.Modules)

	if err := applyOverlays(out.Modules, beforeProjection, pages); err != nil {
		return nil, err
	}

	out.Modules = out.Modules.Pick(append(append([]string(nil), allowList...), pages...)...)

	if err := applyOverlays(out.Modules, afterProjection, pages); err != nil {
		return nil, err
	}

	out.Kind = TargetKind

	return out, nil
}

// rewriteModules copies modules the sandbox can use, renaming extensions it does not
// compile and rewriting their imports to match.
func rewriteModules(in *bundle.Modules) *bundle.Modules {
	out := bundle.NewModules()

	in.Each(func(mod *bundle.Module) bool {
		if skipPath(mod.Path) {
			return true
		}

		out.Set(&bundle.Module{
			Path:  rewritePath(mod.Path),
			Code:  rewriteImports(mod.Code),
			Entry: mod.Entry,
		})
		return true
	})

	return out
}

// skipPath reports hidden files and documents the sandbox cannot run
func skipPath(path string) bool {
	return strings.HasPrefix(path, "/.") ||
		strings.HasSuffix(path, ".html") ||
		strings.HasSuffix(path, ".md")
}

func rewritePath(path string) string {
	if base, ok := strings.CutSuffix(path, ".jsx"); ok {
		return base + ".js"
	}
	if base, ok := strings.CutSuffix(path, ".scss"); ok {
		return base + ".css"
	}
	return path
}

// rewriteImports maps '@/x' aliases onto /src/x and .scss imports onto .css.
// Each rewrite is a single pass over the source.
func rewriteImports(code string) string {
	code = aliasImport.ReplaceAllString(code, "import ${1} from '/src/${2}'")
	code = scssImport.ReplaceAllString(code, "import ${1} from '${2}.css'")
	return code
}

func pagePaths(modules *bundle.Modules) []string {
	var pages []string
	for _, path := range modules.Paths() {
		if strings.HasPrefix(path, pagesPrefix) {
			pages = append(pages, path)
		}
	}
	return pages
}
