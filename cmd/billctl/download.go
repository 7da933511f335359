package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-capture/internal/application/port"
)

var downloadCmd = &cobra.Command{
	Use:   "download <stored-path>",
	Short: "Fetch the original document behind a bill",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().Bool("preview", false, "request the inline form used for previews")
	downloadCmd.Flags().StringP("output", "o", "", "output file, defaults to the stored file name")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	preview, _ := cmd.Flags().GetBool("preview")
	output, _ := cmd.Flags().GetString("output")

	file, err := app.client.Retrieve(cmd.Context(), port.RetrieveRequest{
		UserID:  app.principal.UserID,
		Path:    args[0],
		Preview: preview,
	})
	if err != nil {
		if errors.Is(err, port.ErrFileNotFound) {
			return fmt.Errorf("file not found: %s", args[0])
		}
		return err
	}

	if output == "" {
		output = file.FileName
		if output == "" {
			output = filepath.Base(args[0])
		}
	}
	if err := os.WriteFile(output, file.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %d bytes, %s)\n", output, file.ContentType, len(file.Data), file.Disposition)
	return nil
}
