package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/gravitypreview/cmd/preview/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Normalize commands.NormalizeCmd `cmd:"" help:"Normalize a bundle for the riddle preview sandbox"`
		Check     commands.CheckCmd     `cmd:"" help:"Normalize a bundle and verify it bundles with esbuild"`
		Serve     commands.ServeCmd     `cmd:"" help:"Serve the normalizer over HTTP"`
		Debug     bool                  `help:"Enable debug mode." env:"PREVIEW_DEBUG"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("preview"),
		kong.Description("Rewrite code generator bundles for the riddle live-preview sandbox."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
