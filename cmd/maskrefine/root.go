package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "v0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "maskrefine",
		Short: "Mask refinement loss training",
		Long: `maskrefine trains a mask generator with a refinement loss that pushes the
masked foreground's embedding away from a background text prompt.

Use "maskrefine train --help" for training options.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(newTrainCmd(), newConfigCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "maskrefine %s\n", version)
		},
	}
}

// newLogger returns a development logger (console, debug level) when debug
// is set and a production logger (JSON, info level) otherwise.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
