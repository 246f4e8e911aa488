package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/VEEP09/xc-test-apim/internal/version"
)

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(out, "%s %s\n", version.Name, version.Full())
		},
	}
}
