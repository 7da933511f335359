package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-capture/internal/application/capture"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Submit a bill from a file, the camera or manual entry",
	Long: `Submit a bill. Documents go to the extractor; when fields are missing the
draft opens for review before it is saved.`,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Submit a receipt image or PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Photograph a receipt and submit it",
	Args:  cobra.NoArgs,
	RunE:  runCamera,
}

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Enter a bill by hand",
	Long: `Enter a bill by hand. Each --item is description[:quantity[:amount]], for
example --item "Coffee:2:240". At least one item is required.`,
	Args: cobra.NoArgs,
	RunE: runManual,
}

func init() {
	for _, c := range []*cobra.Command{uploadCmd, cameraCmd, manualCmd} {
		c.Flags().String("category", "", "expense category: "+strings.Join(entity.Categories, ", "))
		c.Flags().String("total", "", "total amount, overrides the extracted value")
		c.Flags().Bool("no-confirm", false, "print a draft that needs review instead of opening the prompt")
	}
	cameraCmd.Flags().Duration("delay", 0, "wait before taking the photo")

	manualCmd.Flags().String("vendor", "", "vendor name")
	manualCmd.Flags().String("date", "", "bill date, e.g. 2025-01-31 or 31/01/2025")
	manualCmd.Flags().String("payment", "", "payment method: "+strings.Join(entity.PaymentMethods, ", "))
	manualCmd.Flags().String("bill-no", "", "bill or invoice number")
	manualCmd.Flags().StringArray("item", nil, "line item as description[:quantity[:amount]]")

	captureCmd.AddCommand(uploadCmd, cameraCmd, manualCmd)
	rootCmd.AddCommand(captureCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	h := app.captureHandler()
	if err := h.PickFile(args[0]); err != nil {
		return err
	}
	return submitFile(cmd, h)
}

func runCamera(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	h := app.captureHandler()
	if err := h.StartCamera(ctx); err != nil {
		return err
	}
	defer func() { _ = h.StopCamera() }()

	if delay, _ := cmd.Flags().GetDuration("delay"); delay > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Taking photo in %s...\n", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := h.CapturePhoto(ctx); err != nil {
		return err
	}
	f := h.File()
	fmt.Fprintf(cmd.OutOrStdout(), "Captured %s (%d bytes)\n", f.Name, len(f.Data))
	return submitFile(cmd, h)
}

func submitFile(cmd *cobra.Command, h *capture.Handler) error {
	category, _ := cmd.Flags().GetString("category")
	total, err := amountFlag(cmd, "total")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Extracting...")
	outcome, err := h.Submit(cmd.Context(), capture.FileSubmission{
		Category:    category,
		TotalAmount: total,
	})
	if err != nil {
		return err
	}
	return handleOutcome(cmd, h, outcome)
}

func runManual(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	vendor, _ := flags.GetString("vendor")
	date, _ := flags.GetString("date")
	category, _ := flags.GetString("category")
	payment, _ := flags.GetString("payment")
	billNo, _ := flags.GetString("bill-no")
	rawItems, _ := flags.GetStringArray("item")

	total, err := amountFlag(cmd, "total")
	if err != nil {
		return err
	}
	items := make([]entity.BillItem, 0, len(rawItems))
	for _, raw := range rawItems {
		item, err := parseItem(raw)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	h := app.captureHandler()
	outcome, err := h.Submit(cmd.Context(), capture.ManualSubmission{
		Vendor:        vendor,
		BillDate:      date,
		Category:      category,
		TotalAmount:   total,
		PaymentMethod: payment,
		BillNo:        billNo,
		Items:         items,
	})
	if err != nil {
		return err
	}
	return handleOutcome(cmd, h, outcome)
}

// handleOutcome reports a submission result. A draft that needs review opens
// the confirmation prompt on stdin unless --no-confirm is set.
func handleOutcome(cmd *cobra.Command, h *capture.Handler, outcome entity.Outcome) error {
	out := cmd.OutOrStdout()
	switch o := outcome.(type) {
	case entity.Committed:
		fmt.Fprintf(out, "Bill %s saved.\n", o.BillID)
		return nil
	case entity.ExtractionFailed:
		return errors.New(o.Reason)
	case entity.NeedsConfirmation:
		if noConfirm, _ := cmd.Flags().GetBool("no-confirm"); noConfirm {
			fmt.Fprintf(out, "Needs review, missing: %s\n", joinFields(o.MissingFields))
			formatDraft(out, o.Draft, nil)
			return nil
		}
		return confirmOutcome(cmd.Context(), o, h.ClearFile, cmd.InOrStdin(), out)
	default:
		return fmt.Errorf("unexpected outcome %T", outcome)
	}
}

func confirmOutcome(ctx context.Context, nc entity.NeedsConfirmation, release func(), in io.Reader, out io.Writer) error {
	if len(nc.MissingFields) > 0 {
		fmt.Fprintf(out, "Missing: %s\n", joinFields(nc.MissingFields))
	}
	session, err := app.confirmations(release).Begin(ctx, nc)
	if err != nil {
		return err
	}
	_, err = runConfirmLoop(ctx, session, app.client, app.principal.UserID, in, out)
	return err
}

// amountFlag parses an optional amount flag. Unset means nil.
func amountFlag(cmd *cobra.Command, name string) (*float64, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := entity.ParseAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &v, nil
}

// parseItem reads description[:quantity[:amount]]. Quantity defaults to 1.
func parseItem(raw string) (entity.BillItem, error) {
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return entity.BillItem{}, fmt.Errorf("invalid item %q: want description[:quantity[:amount]]", raw)
	}
	item := entity.BillItem{Description: strings.TrimSpace(parts[0]), Quantity: 1}
	if item.Description == "" {
		return entity.BillItem{}, fmt.Errorf("invalid item %q: description is required", raw)
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		q, err := entity.ParseAmount(parts[1])
		if err != nil {
			return entity.BillItem{}, fmt.Errorf("invalid item %q: %w", raw, err)
		}
		item.Quantity = q
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		a, err := entity.ParseAmount(parts[2])
		if err != nil {
			return entity.BillItem{}, fmt.Errorf("invalid item %q: %w", raw, err)
		}
		item.Amount = a
		if item.Quantity > 0 {
			item.Rate = a / item.Quantity
		}
	}
	return item, nil
}

func joinFields(fields []entity.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
