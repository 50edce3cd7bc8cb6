package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/substra/docpipeline/cmd/docpipeline/commands"
	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("docpipeline"),
		kong.Description("Build the Substra documentation and package it for Binder."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	err := parser.Run(global, cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
