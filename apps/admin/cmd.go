package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/trezcool/shule/core"
)

// set at build time: -ldflags "-X main.version=1.2.0"
var version = "dev"

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	migrate migrateFunc // mockable
}

func newCommandLine(conf *core.Config, logger core.Logger) *commandLine {
	cli := &commandLine{conf: conf, logger: logger}
	cli.migrate = cli.migrateDB
	return cli
}

func (cli *commandLine) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Shule administration tool",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(
		cli.migrateCmd(),
		cli.ledgerCmd(),
		cli.reportCardCmd(),
		cli.versionCmd(),
	)
	return root
}

func (cli *commandLine) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the tool version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Build:      %s\n", cli.conf.Build)
			fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
