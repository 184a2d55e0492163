package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/client/store"
	"shirly.shop/app/pkg/view"
)

func productsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "products", Short: "Browse the catalogue"}

	var q client.ProductQuery
	var minPrice, maxPrice int
	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min-price") {
				q.MinPrice = &minPrice
			}
			if cmd.Flags().Changed("max-price") {
				q.MaxPrice = &maxPrice
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			l, err := store.NewCatalogStore(a.c, a.toasts).Search(ctx, q)
			if err != nil {
				return err
			}
			return a.emit(l, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "SLUG\tNAME\tPRICE\tSTOCK\tRATING")
				for _, p := range l.Items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f (%d)\n", p.Slug, p.Name, p.Price(), p.Stock, p.RatingAvg, p.RatingCount)
				}
				fmt.Fprintf(w, "page %d of %d (%d products)\n", l.Page, l.TotalPages, l.Total)
			})
		},
	}
	f := list.Flags()
	f.StringVarP(&q.Q, "query", "q", "", "search text")
	f.StringVar(&q.Category, "category", "", "category slug")
	f.IntVar(&minPrice, "min-price", 0, "minimum price in cents")
	f.IntVar(&maxPrice, "max-price", 0, "maximum price in cents")
	f.BoolVar(&q.InStock, "in-stock", false, "only products with stock")
	f.StringVar(&q.Sort, "sort", "", "newest|price_asc|price_desc|rating")
	f.IntVar(&q.Page, "page", 1, "page number")

	show := &cobra.Command{
		Use:   "show <slug>",
		Short: "Show one product with its latest reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			p, err := a.c.Product(ctx, args[0])
			if err != nil {
				return err
			}
			reviews, err := a.c.Reviews(ctx, args[0], 1)
			if err != nil {
				return err
			}
			return a.emit(map[string]any{"product": p, "reviews": reviews}, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Price())
				fmt.Fprintf(w, "id\t%s\n", p.ID)
				fmt.Fprintf(w, "stock\t%d\n", p.Stock)
				if p.Category != nil {
					fmt.Fprintf(w, "category\t%s\n", p.Category.Name)
				}
				fmt.Fprintf(w, "rating\t%.1f from %d reviews\n", p.RatingAvg, p.RatingCount)
				if p.Description != "" {
					fmt.Fprintf(w, "\n%s\n", p.Description)
				}
				for _, r := range reviews.Items {
					fmt.Fprintf(w, "\n%d/5\t%s\t%s\n", r.Rating, r.Title, r.AuthorName)
				}
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func printCart(w *tabwriter.Writer, lines []view.CartItem, t store.Totals) {
	fmt.Fprintln(w, "PRODUCT\tNAME\tQTY\tPRICE\tLINE")
	for _, it := range lines {
		name := it.ProductName
		if !it.Available {
			name += " (unavailable)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", it.ProductID, name, it.Qty,
			money(it.UnitPriceCents, it.Currency), money(it.LineTotalCents, it.Currency))
	}
	fmt.Fprintf(w, "\t%d items\t\tsubtotal\t%s\n", t.Count, money(t.SubtotalCents, t.Currency))
}

func cartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "cart", Short: "Show and edit the cart"}

	// run applies op through a CartStore and prints the resulting cart.
	run := func(cmd *cobra.Command, op func(s *store.CartStore) error) error {
		if err := a.requireLogin(); err != nil {
			return err
		}
		s := store.NewCartStore(a.c, a.toasts)
		if err := op(s); err != nil {
			return err
		}
		lines := s.Lines()
		return a.emit(lines, func(w *tabwriter.Writer) { printCart(w, lines, s.Totals()) })
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			return run(cmd, func(s *store.CartStore) error { return s.Sync(ctx) })
		},
	}

	var qty int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			return run(cmd, func(s *store.CartStore) error { return s.Add(ctx, args[0], qty) })
		},
	}
	add.Flags().IntVarP(&qty, "qty", "n", 1, "quantity")

	set := &cobra.Command{
		Use:   "set <product-id> <qty>",
		Short: "Set the quantity of a line (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("qty: %w", err)
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			return run(cmd, func(s *store.CartStore) error { return s.SetQty(ctx, args[0], n) })
		},
	}

	rm := &cobra.Command{
		Use:   "rm <product-id>",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			return run(cmd, func(s *store.CartStore) error { return s.Remove(ctx, args[0]) })
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			return run(cmd, func(s *store.CartStore) error { return s.Clear(ctx) })
		},
	}

	cmd.AddCommand(show, add, set, rm, clearCmd)
	return cmd
}

func wishlistCmd(a *app) *cobra.Command {
	var add, remove, move string
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Show the wishlist, or change it with --add, --rm or --move",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			s := store.NewWishlistStore(a.c, store.NewCartStore(a.c, nil), a.toasts)
			var err error
			switch {
			case add != "":
				err = s.Add(ctx, add)
			case remove != "":
				err = s.Remove(ctx, remove)
			case move != "":
				err = s.MoveToCart(ctx, move)
			default:
				err = s.Sync(ctx)
			}
			if err != nil {
				return err
			}
			items := s.Items()
			return a.emit(items, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "PRODUCT\tNAME\tPRICE\tADDED")
				for _, it := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Product.ID, it.Product.Name, it.Product.Price(), day(it.AddedAt))
				}
			})
		},
	}
	cmd.Flags().StringVar(&add, "add", "", "product id to add")
	cmd.Flags().StringVar(&remove, "rm", "", "product id to remove")
	cmd.Flags().StringVar(&move, "move", "", "product id to move into the cart")
	cmd.MarkFlagsMutuallyExclusive("add", "rm", "move")
	return cmd
}

func checkoutCmd(a *app) *cobra.Command {
	var in view.CheckoutRequest
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order from the cart and print the payment link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if in.IdempotencyKey == "" {
				in.IdempotencyKey = uuid.NewString()
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			res, err := a.c.Checkout(ctx, in)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "order\t%s\n", res.OrderID)
				fmt.Fprintf(w, "pay at\t%s\n", res.SessionURL)
				fmt.Fprintf(w, "expires\t%s\n", day(res.ExpiresAt))
			})
		},
	}
	cmd.Flags().StringVar(&in.AddressID, "address", "", "address id (default address when omitted)")
	cmd.Flags().StringVar(&in.ShippingMethod, "shipping", "standard", "standard|express")
	cmd.Flags().StringVar(&in.IdempotencyKey, "key", "", "idempotency key; reuse it to retry safely")
	return cmd
}
