package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/client/admintable"
	"shirly.shop/app/pkg/view"
)

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Back-office commands (admin accounts only)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			return a.requireLogin()
		},
	}
	cmd.AddCommand(adminOrdersCmd(a), adminStatsCmd(a))
	return cmd
}

type adminOrdersFlags struct {
	query    string
	statuses []string
	from     string
	to       string
	minTotal int
	maxTotal int
	sort     string
	asc      bool
	page     int
	size     int

	selectIDs []string
	allOnPage bool
	apply     string
	note      string
}

// parseDay takes YYYY-MM-DD in local time.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func adminOrdersCmd(a *app) *cobra.Command {
	var f adminOrdersFlags
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Filter, sort and page orders; --apply runs a bulk action on the selection",
		Long: `Loads the orders matching the status and date filters, then narrows, sorts and
pages them locally. With --apply, the selected rows (--select ids or --all on the
shown page) are moved through ship, deliver or cancel in one request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDay(f.from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := parseDay(f.to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if !to.IsZero() {
				to = to.AddDate(0, 0, 1)
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()
			rows, err := admintable.Fetch(ctx, a.c, client.AdminOrderQuery{Statuses: f.statuses, From: from, To: to})
			if err != nil {
				return err
			}

			filter := admintable.Filter{Query: f.query, Statuses: f.statuses, From: from, To: to}
			if cmd.Flags().Changed("min-total") {
				filter.MinTotal = &f.minTotal
			}
			if cmd.Flags().Changed("max-total") {
				filter.MaxTotal = &f.maxTotal
			}
			tbl := admintable.New(rows)
			tbl.SetFilter(filter)
			tbl.SetSort(admintable.Sort{Field: admintable.SortField(f.sort), Desc: !f.asc})

			var results []view.BulkResult
			if f.apply != "" {
				for _, id := range f.selectIDs {
					tbl.Select(id, true)
				}
				if f.allOnPage {
					tbl.SelectAllOnPage(f.page, f.size)
				}
				if len(tbl.Selected()) == 0 {
					return fmt.Errorf("--apply needs --select or --all")
				}
				results, err = tbl.BulkApply(ctx, a.c, f.apply, f.note)
				if err != nil {
					return err
				}
			}

			page := tbl.Page(f.page, f.size)
			out := map[string]any{"page": page.Number, "total_pages": page.TotalPages, "total": page.Total, "rows": page.Rows}
			if results != nil {
				out["results"] = results
			}
			return a.emit(out, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tSTATUS\tCUSTOMER\tTOTAL\tPLACED")
				for _, o := range page.Rows {
					who := o.CustomerName
					if who == "" {
						who = o.CustomerEmail
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.Status, who, o.Total(), day(o.CreatedAt))
				}
				fmt.Fprintf(w, "page %d of %d (%d orders)\n", page.Number, page.TotalPages, page.Total)
				for _, r := range results {
					if r.OK {
						fmt.Fprintf(w, "%s\t-> %s\n", r.ID, r.Status)
					} else {
						fmt.Fprintf(w, "%s\tfailed: %s\n", r.ID, r.Error)
					}
				}
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.query, "query", "q", "", "order id prefix, customer name or email")
	fl.StringSliceVar(&f.statuses, "status", nil, "statuses to include (repeat or comma separate)")
	fl.StringVar(&f.from, "from", "", "placed on or after YYYY-MM-DD")
	fl.StringVar(&f.to, "to", "", "placed on or before YYYY-MM-DD")
	fl.IntVar(&f.minTotal, "min-total", 0, "minimum total in cents")
	fl.IntVar(&f.maxTotal, "max-total", 0, "maximum total in cents")
	fl.StringVar(&f.sort, "sort", string(admintable.SortCreatedAt), "created_at|total|status|customer")
	fl.BoolVar(&f.asc, "asc", false, "ascending order")
	fl.IntVar(&f.page, "page", 1, "page number")
	fl.IntVar(&f.size, "page-size", 30, "rows per page")
	fl.StringSliceVar(&f.selectIDs, "select", nil, "order ids to act on")
	fl.BoolVar(&f.allOnPage, "all", false, "select every row on the shown page")
	fl.StringVar(&f.apply, "apply", "", "bulk action: ship|deliver|cancel")
	fl.StringVar(&f.note, "note", "", "note recorded with the bulk action")
	return cmd
}

func adminStatsCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Sales dashboard for a date range (default: last 30 days)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			d, err := a.c.Analytics(ctx, from, to)
			if err != nil {
				return err
			}
			return a.emit(d, func(w *tabwriter.Writer) {
				m := func(c int64) string { return money(int(c), d.Currency) }
				fmt.Fprintf(w, "range\t%s .. %s\n", d.From, d.To)
				fmt.Fprintf(w, "revenue\t%s\n", m(d.RevenueCents))
				fmt.Fprintf(w, "orders\t%d (%d paid)\n", d.Orders, d.PaidOrders)
				fmt.Fprintf(w, "average order\t%s\n", m(d.AvgOrderValueCents))
				fmt.Fprintf(w, "customers\t%d (%d new)\n", d.Customers, d.NewCustomers)
				if len(d.OrdersByStatus.Labels) > 0 {
					parts := make([]string, len(d.OrdersByStatus.Labels))
					for i, l := range d.OrdersByStatus.Labels {
						parts[i] = fmt.Sprintf("%s=%d", l, d.OrdersByStatus.Values[i])
					}
					fmt.Fprintf(w, "by status\t%s\n", strings.Join(parts, " "))
				}
				fmt.Fprintln(w, "\nTOP PRODUCT\tQTY\tREVENUE")
				for _, p := range d.TopProducts {
					fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, p.Qty, m(p.RevenueCents))
				}
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	return cmd
}
