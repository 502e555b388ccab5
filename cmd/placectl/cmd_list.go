package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/park-places/internal/service"
)

// listCmd prints the owner's places the way the saved-places view shows them.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved places, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, ctx, err := current.session(cmd.Context())
		if err != nil {
			return err
		}
		list, err := sess.Listing.Refresh(ctx)
		if err != nil {
			return err
		}
		return printList(cmd.OutOrStdout(), list)
	},
}

func printList(w io.Writer, list *service.RenderedList) error {
	if list.Count == 0 {
		_, err := fmt.Fprintln(w, "No saved places.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tCOLOR\tSECTION\tNUMBER\tLOCATED")
	for _, row := range list.Rows {
		located := "no"
		if row.HasLocation {
			located = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.ID, row.When, row.Color, row.Section, row.Number, located)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d place(s), %d on the map\n", list.Count, len(list.Markers))
	return err
}
