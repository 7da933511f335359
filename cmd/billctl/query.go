package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-capture/internal/application/port"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question about your bills in plain language",
	Example: `  billctl query "how much did I spend on travel last month"
  billctl query "show my bills from Starbucks"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}
	resp, err := app.client.Answer(cmd.Context(), port.QueryRequest{
		UserID: app.principal.UserID,
		Query:  question,
	})
	if err != nil {
		return err
	}
	formatQueryResult(cmd.OutOrStdout(), resp.Result)
	return nil
}
