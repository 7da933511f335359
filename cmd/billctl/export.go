package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-capture/internal/application/port"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download matching bills as a spreadsheet",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	addListingFlags(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "output file, defaults to the name the server suggests")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	q, err := listingQueryFromFlags(cmd)
	if err != nil {
		return err
	}
	data, name, err := app.client.Export(cmd.Context(), port.ListRequest{
		UserID: app.principal.UserID,
		Query:  q,
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = name
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s (%d bytes)\n", output, len(data))
	return nil
}
