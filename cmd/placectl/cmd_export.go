package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sakif/park-places/internal/model"
)

var exportFormat string

// exportCmd dumps the raw places, for backups or moving between backends.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved places as YAML or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		places, err := current.places.Stores.ForOwner(current.owner).List(cmd.Context())
		if err != nil {
			return err
		}
		return writePlaces(cmd.OutOrStdout(), exportFormat, places)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "output format: yaml or json")
}

func writePlaces(w io.Writer, format string, places []model.Place) error {
	if places == nil {
		places = []model.Place{}
	}
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(places); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(places)
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}
