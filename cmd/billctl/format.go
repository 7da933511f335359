package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/garyjia/expense-capture/internal/application/listing"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

var draftFields = []entity.Field{
	entity.FieldVendor,
	entity.FieldBillDate,
	entity.FieldTotalAmount,
	entity.FieldTaxAmount,
	entity.FieldCurrency,
	entity.FieldCategory,
	entity.FieldPaymentMethod,
	entity.FieldBillNo,
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// formatDraft prints the draft with per-field errors beside the values.
// Items are numbered from 1.
func formatDraft(w io.Writer, d entity.Draft, errs map[entity.Field]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range draftFields {
		value := d.Value(f)
		if value == "" || (f == entity.FieldTaxAmount && d.TaxAmount == 0) {
			value = "-"
		}
		if msg, ok := errs[f]; ok {
			fmt.Fprintf(tw, "%s\t%s\t! %s\n", f, value, msg)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", f, value)
	}
	_ = tw.Flush()

	fmt.Fprintln(w, "items:")
	if msg, ok := errs[entity.FieldItems]; ok {
		fmt.Fprintf(w, "  ! %s\n", msg)
	}
	if len(d.Items) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tDESCRIPTION\tQTY\tRATE\tAMOUNT\tTAX")
	for i, item := range d.Items {
		fmt.Fprintf(tw, "  %d\t%s\t%g\t%s\t%s\t%s\n",
			i+1, item.Description, item.Quantity,
			formatAmount(item.Rate), formatAmount(item.Amount), formatAmount(item.Tax))
	}
	_ = tw.Flush()
}

// formatBills prints one listing page
func formatBills(w io.Writer, v listing.View) {
	if v.Err != nil {
		fmt.Fprintf(w, "error: %v\n", v.Err)
		return
	}
	if len(v.Rows) == 0 {
		fmt.Fprintln(w, "No bills found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tVENDOR\tCATEGORY\tPAYMENT\tTOTAL\tITEMS\tID")
	for _, b := range v.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			b.BillDate, b.Vendor, b.Category, b.PaymentMethod,
			formatAmount(b.TotalAmount), len(b.Items), b.ID)
	}
	_ = tw.Flush()

	q := v.Query
	fmt.Fprintf(w, "Page %d of %d (%d bills, sorted by %s %s", v.Page, v.TotalPages, v.Total, q.SortBy, q.SortOrder)
	if q.Search != "" {
		fmt.Fprintf(w, ", search %q", q.Search)
	}
	fmt.Fprintln(w, ")")
}

// formatQueryResult prints a natural-language answer: a sentence or rows
func formatQueryResult(w io.Writer, result interface{}) {
	switch r := result.(type) {
	case string:
		fmt.Fprintln(w, r)
	case []interface{}:
		if len(r) == 0 {
			fmt.Fprintln(w, "No matching bills.")
			return
		}
		cols := []string{"bill_date", "vendor", "category", "payment_method", "total_amount"}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
		for _, row := range r {
			m, ok := row.(map[string]interface{})
			if !ok {
				continue
			}
			vals := make([]string, len(cols))
			for i, c := range cols {
				vals[i] = cellString(m[c])
			}
			fmt.Fprintln(tw, strings.Join(vals, "\t"))
		}
		_ = tw.Flush()
	case map[string]interface{}:
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", k, cellString(r[k]))
		}
	default:
		fmt.Fprintf(w, "%v\n", r)
	}
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatAmount(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
