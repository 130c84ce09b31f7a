package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/quarry/query"
	"github.com/solatis/quarry/store/sqlstore"
)

var supportCmd = &cobra.Command{
	Use:   "support",
	Short: "Print the operator support matrix per backend",
	RunE:  runSupport,
}

func init() {
	rootCmd.AddCommand(supportCmd)
}

func runSupport(cmd *cobra.Command, args []string) error {
	backends := []struct {
		name   string
		matrix query.SupportMatrix
	}{
		{"memory", query.FullSupport()},
		{"sql", sqlstore.Matrix()},
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprint(w, "OPERATOR")
	for _, b := range backends {
		fmt.Fprintf(w, "\t%s", b.name)
	}
	fmt.Fprintln(w)

	mark := func(ok bool) string {
		if ok {
			return "native"
		}
		return "fallback"
	}

	for _, k := range query.CondKinds() {
		fmt.Fprintf(w, "cond/%s", k)
		for _, b := range backends {
			fmt.Fprintf(w, "\t%s", mark(b.matrix.Conditions[k]))
		}
		fmt.Fprintln(w)
	}
	for _, k := range query.ModKinds() {
		fmt.Fprintf(w, "mod/%s", k)
		for _, b := range backends {
			fmt.Fprintf(w, "\t%s", mark(b.matrix.Modifications[k]))
		}
		fmt.Fprintln(w)
	}
	return nil
}
