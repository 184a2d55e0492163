package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shirly.shop/app/pkg/client/chat"
	"shirly.shop/app/pkg/client/store"
	"shirly.shop/app/pkg/view"
)

func ordersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "orders", Short: "Your orders"}

	var status string
	var page int
	list := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			l, err := a.c.Orders(ctx, status, page)
			if err != nil {
				return err
			}
			return a.emit(l, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tSTATUS\tITEMS\tTOTAL\tPLACED")
				for _, o := range l.Items {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", o.ID, o.Status, o.ItemCount, o.Total(), day(o.CreatedAt))
				}
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "only orders in this status")
	list.Flags().IntVar(&page, "page", 1, "page number")

	show := &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show an order with items and shipments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			o, err := a.c.Order(ctx, args[0])
			if err != nil {
				return err
			}
			return a.emit(o, func(w *tabwriter.Writer) { printOrder(w, o) })
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an order that has not shipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			o, err := a.c.CancelOrder(ctx, args[0])
			if err != nil {
				return err
			}
			return a.emit(o, func(w *tabwriter.Writer) { printOrder(w, o) })
		},
	}

	cmd.AddCommand(list, show, cancelCmd)
	return cmd
}

func printOrder(w *tabwriter.Writer, o view.Order) {
	fmt.Fprintf(w, "order\t%s\n", o.ID)
	fmt.Fprintf(w, "status\t%s\n", o.Status)
	fmt.Fprintf(w, "placed\t%s\n", day(o.CreatedAt))
	for _, it := range o.Items {
		fmt.Fprintf(w, "  %d x %s\t%s\n", it.Qty, it.ProductName, money(it.LineTotalCents, o.Currency))
	}
	fmt.Fprintf(w, "subtotal\t%s\n", money(o.SubtotalCents, o.Currency))
	fmt.Fprintf(w, "shipping (%s)\t%s\n", o.ShippingMethod, money(o.ShippingCents, o.Currency))
	fmt.Fprintf(w, "tax\t%s\n", money(o.TaxCents, o.Currency))
	fmt.Fprintf(w, "total\t%s\n", o.Total())
	if o.RefundedCents > 0 {
		fmt.Fprintf(w, "refunded\t%s\n", money(o.RefundedCents, o.Currency))
	}
	for _, s := range o.Shipments {
		fmt.Fprintf(w, "shipment\t%s %s\n", s.Carrier, s.TrackingNumber)
	}
	if o.CheckoutURL != "" {
		fmt.Fprintf(w, "pay at\t%s\n", o.CheckoutURL)
	}
}

func chatCmd(a *app) *cobra.Command {
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "chat <order-id>",
		Short: "Talk to support about an order; each stdin line is sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			return a.runChat(cmd.Context(), args[0], poll)
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", 3*time.Second, "polling interval when the websocket is unavailable")
	return cmd
}

func (a *app) runChat(ctx context.Context, orderID string, poll time.Duration) error {
	s, err := chat.Open(ctx, a.c, orderID, chat.Options{
		PollInterval: poll,
		OnError:      func(err error) { fmt.Fprintln(a.errOut, "chat:", err) },
	})
	if err != nil {
		return err
	}
	defer s.Close()
	fmt.Fprintf(a.errOut, "connected (%s); type a message and press enter, Ctrl-D to quit\n", s.Mode())

	printed := map[string]bool{}
	flush := func() {
		for _, m := range s.Messages() {
			if m.Pending || printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			if m.Failed {
				fmt.Fprintf(a.out, "[not sent] %s\n", m.Body)
				continue
			}
			fmt.Fprintf(a.out, "%s %-8s %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderRole, m.Body)
		}
	}
	flush()
	if _, err := s.MarkRead(ctx); err != nil {
		fmt.Fprintln(a.errOut, "chat:", store.Message(err))
	}

	lines := readLines(ctx, a.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-s.Updates():
			if !ok {
				return nil
			}
			flush()
		case line, ok := <-lines:
			if !ok {
				flush()
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := s.Send(ctx, line); err != nil {
				fmt.Fprintln(a.errOut, "chat:", store.Message(err))
			}
			flush()
		}
	}
}

// readLines feeds r line by line until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func notificationsCmd(a *app) *cobra.Command {
	var unread, markAll bool
	var markID string
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications, or mark them read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			s := store.NewNotificationStore(a.c, a.toasts)
			switch {
			case markAll:
				if err := s.MarkAllRead(ctx); err != nil {
					return err
				}
			case markID != "":
				if err := s.MarkRead(ctx, markID); err != nil {
					return err
				}
			}
			if err := s.Sync(ctx, unread); err != nil {
				return err
			}
			items := s.Items()
			return a.emit(items, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tWHEN\tTITLE\t")
				for _, n := range items {
					mark := ""
					if n.ReadAt == nil {
						mark = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, day(n.CreatedAt), n.Title, mark)
				}
				fmt.Fprintf(w, "%d unread\n", s.Unread())
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	cmd.Flags().BoolVar(&markAll, "read-all", false, "mark every notification read")
	cmd.Flags().StringVar(&markID, "read", "", "mark one notification read")
	return cmd
}
