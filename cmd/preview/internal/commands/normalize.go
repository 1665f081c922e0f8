package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wolfeidau/gravitypreview/internal/assets"
	"github.com/wolfeidau/gravitypreview/internal/bundle"
	"github.com/wolfeidau/gravitypreview/internal/logger"
	"github.com/wolfeidau/gravitypreview/internal/preview"
)

type NormalizeCmd struct {
	In      string `help:"Bundle document to read, - for stdin" default:"-" short:"i" env:"PREVIEW_IN"`
	Out     string `help:"Where to write the normalized bundle, - for stdout" default:"-" short:"o" env:"PREVIEW_OUT"`
	Refresh string `help:"Cache-busting token supplied by the preview widget" default:"" env:"PREVIEW_REFRESH"`
	Pretty  bool   `help:"Indent the output document" default:"false"`
	Check   bool   `help:"Verify the normalized bundle with esbuild before writing it" default:"false"`
}

func (n *NormalizeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	in, err := readBundle(n.In)
	if err != nil {
		return err
	}

	out, err := preview.Normalize(in, n.Refresh)
	if err != nil {
		return fmt.Errorf("failed to normalize bundle: %w", err)
	}

	if out == nil {
		log.Warn().Msg("Empty bundle, nothing to preview")
	} else {
		log.Debug().
			Int("modules_in", in.Modules.Len()).
			Int("modules_out", out.Modules.Len()).
			Str("kind", out.Kind).
			Msg("Normalized bundle")
	}

	if n.Check && out != nil {
		res, err := assets.New(assets.DefaultConfig()).Build(ctx, out)
		if res != nil {
			printDiagnostics(res)
		}
		if err != nil {
			return fmt.Errorf("bundle verification failed: %w", err)
		}
	}

	data, err := bundle.Encode(out, n.Pretty)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	return writeOutput(n.Out, data)
}

type CheckCmd struct {
	In      string   `help:"Bundle document to read, - for stdin" default:"-" short:"i" env:"PREVIEW_IN"`
	Minify  bool     `help:"Minify while bundling" default:"false"`
	Entries []string `help:"Entry modules to bundle" default:"/src/app.js,/src/html.js"`
}

func (c *CheckCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	in, err := readBundle(c.In)
	if err != nil {
		return err
	}

	out, err := preview.Normalize(in, nil)
	if err != nil {
		return fmt.Errorf("failed to normalize bundle: %w", err)
	}
	if out == nil {
		return errors.New("empty bundle, nothing to check")
	}

	config := assets.DefaultConfig()
	config.Minify = c.Minify
	config.Entries = c.Entries

	res, err := assets.New(config).Build(ctx, out)
	if res != nil {
		printDiagnostics(res)
	}
	if err != nil {
		return fmt.Errorf("bundle verification failed: %w", err)
	}

	for _, entry := range config.Entries {
		scripts, err := res.Scripts(entry)
		if err != nil {
			continue
		}
		fmt.Printf("%s: %v\n", entry, scripts)
	}

	log.Info().Int("warnings", len(res.Warnings)).Msg("Bundle OK")
	return nil
}

// printDiagnostics writes to stderr so stdout stays a clean document
func printDiagnostics(res *assets.Result) {
	for _, d := range res.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", d)
	}
	for _, d := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", d)
	}
}
