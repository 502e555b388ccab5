package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/service"
)

var deleteYes bool

// deleteCmd removes one place. Without --yes it only prints the prompt.
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, ctx, err := current.session(cmd.Context())
		if err != nil {
			return err
		}

		list, err := sess.Listing.Delete(ctx, args[0], service.Confirmed(deleteYes))
		if errors.Is(err, apperror.ErrConfirmationRequired) {
			return fmt.Errorf("%s Re-run with --yes.", service.DeletePrompt)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
		return printList(cmd.OutOrStdout(), list)
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "confirm the deletion")
}
