package assets

import (
	"github.com/evanw/esbuild/pkg/api"
)

type Config struct {
	// Entry points to bundle, as module paths (e.g., "/src/app.js")
	Entries []string
	// Output directory used to name chunks, nothing is written
	OutputDir string
	// Whether to minify output
	Minify bool
	// Whether to emit inline source maps
	SourceMap bool
	// Language target for syntax checks
	Target api.Target
}

// DefaultConfig checks both scripts the riddle sandbox executes
func DefaultConfig() Config {
	return Config{
		Entries:   []string{"/src/app.js", "/src/html.js"},
		OutputDir: "dist",
		Minify:    false,
		SourceMap: false,
		Target:    api.ES2017,
	}
}
