package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/airyra/accesslog/pkg/accesslog"
)

func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields [format]",
		Short: "Check an access log format",
		Long: `Compile an access log format and print the fields it references.
Without an argument the default format is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := accesslog.DefaultFormat
			if len(args) == 1 {
				source = args[0]
			}

			tmpl, err := accesslog.Compile(source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "POS\tFIELD\n")
			for i, name := range tmpl.Fields() {
				fmt.Fprintf(tw, "%d\t%s\n", i+1, name)
			}
			tw.Flush()
			fmt.Fprintf(out, "\nprintf: %s\n", tmpl.Format())
			return nil
		},
	}
}
