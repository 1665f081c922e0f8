package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/gravitypreview/internal/bundle"
	"github.com/wolfeidau/gravitypreview/internal/telemetry"
)

// namespace holds every module esbuild loads from the bundle
const namespace = "preview"

// resolveSuffixes are tried in order when a specifier omits its extension
var resolveSuffixes = []string{"", ".js", ".jsx", ".css", "/index.js"}

// Pipeline bundles preview bundles in memory with esbuild to catch syntax errors
// and imports that do not resolve before the bundle reaches the sandbox.
type Pipeline struct {
	config  Config
	metrics *telemetry.Metrics
}

// New creates a new asset pipeline with the given configuration
func New(config Config) *Pipeline {
	return &Pipeline{
		config:  config,
		metrics: telemetry.GetMetrics(),
	}
}

// Build bundles the configured entry points of b. Package imports are left external.
// A build with errors returns the result alongside ErrBuildFailed.
func (p *Pipeline) Build(ctx context.Context, b *bundle.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)

	var entryPoints []string
	for _, entry := range p.config.Entries {
		if b != nil && b.Modules.Has(entry) {
			entryPoints = append(entryPoints, entry)
		}
	}
	if len(entryPoints) == 0 {
		return nil, ErrNoEntryPoints
	}

	logger.Debug().Strs("entrypoints", entryPoints).Int("modules", b.Modules.Len()).Msg("Checking bundle")

	started := time.Now()
	result := api.Build(api.BuildOptions{
		EntryPoints:       entryPoints,
		Bundle:            true,
		Splitting:         true,
		Write:             false,
		JSX:               api.JSXTransform,
		Outdir:            p.config.OutputDir,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            p.config.Target,
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		Sourcemap:         cond(p.config.SourceMap, api.SourceMapInline, api.SourceMapNone),
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{bundleResolver(b.Modules)},
	})
	p.metrics.CheckTotal.Add(ctx, 1)
	p.metrics.CheckDuration.Record(ctx, float64(time.Since(started).Microseconds())/1000)

	res := &Result{
		Warnings: toDiagnostics(result.Warnings),
		Errors:   toDiagnostics(result.Errors),
	}

	if len(result.Errors) > 0 {
		p.metrics.CheckErrorsTotal.Add(ctx, 1)
		for _, d := range res.Errors {
			logger.Debug().Str("error", d.String()).Msg("Build error")
		}
		return res, ErrBuildFailed
	}

	for _, file := range result.OutputFiles {
		logger.Debug().Str("file", file.Path).Int("bytes", len(file.Contents)).Msg("Built file")
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	res.Metadata = &metadata

	return res, nil
}

// bundleResolver serves absolute and relative imports from the bundle and marks
// everything else as an external package
func bundleResolver(modules *bundle.Modules) api.Plugin {
	return api.Plugin{
		Name: "preview-bundle",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if !isBundlePath(args.Path) {
						return api.OnResolveResult{Path: args.Path, External: true}, nil
					}

					target := args.Path
					if !strings.HasPrefix(target, "/") {
						target = path.Join(path.Dir(args.Importer), target)
					}

					resolved, ok := resolveModule(modules, target)
					if !ok {
						return api.OnResolveResult{}, fmt.Errorf("module %q not found in bundle", args.Path)
					}
					return api.OnResolveResult{Path: resolved, Namespace: namespace}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: namespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					mod := modules.Get(args.Path)
					if mod == nil {
						return api.OnLoadResult{}, fmt.Errorf("module %q not found in bundle", args.Path)
					}
					contents := mod.Code
					return api.OnLoadResult{Contents: &contents, Loader: loaderFor(args.Path)}, nil
				})
		},
	}
}

func isBundlePath(specifier string) bool {
	return strings.HasPrefix(specifier, "/") || strings.HasPrefix(specifier, ".")
}

func resolveModule(modules *bundle.Modules, target string) (string, bool) {
	for _, suffix := range resolveSuffixes {
		if modules.Has(target + suffix) {
			return target + suffix, true
		}
	}
	return "", false
}

func loaderFor(modulePath string) api.Loader {
	if strings.HasSuffix(modulePath, ".module.css") {
		return api.LoaderLocalCSS
	}

	switch path.Ext(modulePath) {
	case ".js", ".jsx":
		// sandbox entry scripts carry JSX in .js files
		return api.LoaderJSX
	case ".css":
		return api.LoaderCSS
	case ".json":
		return api.LoaderJSON
	case ".html", ".less":
		return api.LoaderText
	default:
		return api.LoaderJS
	}
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
