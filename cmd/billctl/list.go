package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-capture/internal/application/listing"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

const listHelp = `Commands:
  next | prev          move one page
  page <n>             jump to page n
  size <n>             rows per page
  sort <field>         vendor, bill_date, category, total_amount; again to flip
  search [text]        filter by vendor, category or payment method
  refresh              reload the current page
  quit`

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed bills",
	Long: `List committed bills one page at a time. With --interactive the listing
stays open and reads paging, sort and search commands from stdin.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	addListingFlags(listCmd)
	listCmd.Flags().Int("page", 1, "page number")
	listCmd.Flags().Int("page-size", entity.DefaultPageSize, "rows per page")
	listCmd.Flags().BoolP("interactive", "i", false, "keep the listing open for commands")
	rootCmd.AddCommand(listCmd)
}

// addListingFlags registers the filter and sort flags shared by list and export
func addListingFlags(cmd *cobra.Command) {
	cmd.Flags().String("sort", string(entity.SortBillDate), "sort by vendor, bill_date, category or total_amount")
	cmd.Flags().String("order", string(entity.SortDesc), "sort order: asc or desc")
	cmd.Flags().String("search", "", "filter by vendor, category or payment method")
}

// listingQueryFromFlags builds a normalized query from the command's flags
func listingQueryFromFlags(cmd *cobra.Command) (entity.ListingQuery, error) {
	q := entity.DefaultListingQuery()
	flags := cmd.Flags()
	if s, _ := flags.GetString("sort"); s != "" {
		q.SortBy = entity.SortField(s)
	}
	if o, _ := flags.GetString("order"); o != "" {
		q.SortOrder = entity.SortOrder(o)
	}
	q.Search, _ = flags.GetString("search")
	if flags.Lookup("page") != nil {
		q.Page, _ = flags.GetInt("page")
	}
	if flags.Lookup("page-size") != nil {
		q.PageSize, _ = flags.GetInt("page-size")
	}
	return q.Normalize()
}

func runList(cmd *cobra.Command, args []string) error {
	q, err := listingQueryFromFlags(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	interactive, _ := cmd.Flags().GetBool("interactive")

	var printMu sync.Mutex
	opts := []listing.Option{
		listing.WithQuery(q),
		listing.WithDebounce(app.settings.Debounce),
		listing.WithLogger(app.log),
	}
	if interactive {
		opts = append(opts, listing.WithOnChange(func(v listing.View) {
			printMu.Lock()
			defer printMu.Unlock()
			fmt.Fprintln(out)
			formatBills(out, v)
			fmt.Fprint(out, "> ")
		}))
	}

	c := listing.NewController(app.principal, app.client, opts...)
	defer c.Close()

	if !interactive {
		c.Refresh()
		c.Wait()
		v := c.View()
		formatBills(out, v)
		return v.Err
	}

	fmt.Fprintln(out, "Type 'help' for commands.")
	c.Refresh()
	return runListLoop(c, cmd.InOrStdin(), out, &printMu)
}

// runListLoop feeds line commands to the controller until quit or end of input
func runListLoop(c *listing.Controller, in io.Reader, out io.Writer, printMu *sync.Mutex) error {
	say := func(format string, a ...interface{}) {
		printMu.Lock()
		defer printMu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "q", "exit":
			return nil
		case "help", "?":
			say("%s\n> ", listHelp)
		case "next", "n":
			v := c.View()
			if v.TotalPages > 0 && v.Page >= v.TotalPages {
				say("Already on the last page.\n> ")
				continue
			}
			c.SetPage(c.Query().Page + 1)
		case "prev", "p":
			page := c.Query().Page
			if page <= 1 {
				say("Already on the first page.\n> ")
				continue
			}
			c.SetPage(page - 1)
		case "page", "size":
			n, err := intArg(fields)
			if err != nil {
				say("%v\n> ", err)
				continue
			}
			if fields[0] == "page" {
				c.SetPage(n)
			} else {
				c.SetPageSize(n)
			}
		case "sort":
			if len(fields) != 2 {
				say("usage: sort <field>\n> ")
				continue
			}
			if err := c.ToggleSort(entity.SortField(fields[1])); err != nil {
				say("%v\n> ", err)
			}
		case "search":
			c.SetSearch(restAfter(line, 1))
		case "refresh":
			c.Refresh()
		default:
			say("unknown command %q, type 'help'\n> ", fields[0])
		}
	}
	return scanner.Err()
}

func intArg(fields []string) (int, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("usage: %s <n>", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number %q", fields[1])
	}
	return n, nil
}
