// Command shopctl is a terminal front for the Shirly storefront API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/client/store"
	"shirly.shop/app/pkg/view"
)

type app struct {
	apiURL      string
	sessionPath string
	asJSON      bool
	timeout     time.Duration

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	c      *client.Client
	auth   *store.AuthStore
	toasts *store.Toasts
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", store.Message(err))
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Browse, buy and administer the Shirly shop from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.flushToasts()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	defaultAPI := os.Getenv("SHIRLY_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.apiURL, "api", defaultAPI, "API base URL (env SHIRLY_API)")
	pf.StringVar(&a.sessionPath, "session", "", "session file (default: user config dir)")
	pf.BoolVar(&a.asJSON, "json", false, "print raw JSON")
	pf.DurationVar(&a.timeout, "timeout", 30*time.Second, "per-request timeout")

	root.AddCommand(
		loginCmd(a), signupCmd(a), logoutCmd(a), whoamiCmd(a),
		productsCmd(a), cartCmd(a), wishlistCmd(a), checkoutCmd(a),
		ordersCmd(a), chatCmd(a), notificationsCmd(a),
		adminCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.c != nil {
		return nil
	}
	c, err := client.New(client.Config{
		BaseURL: a.apiURL,
		Retries: 2,
	})
	if err != nil {
		return err
	}
	path := a.sessionPath
	if path == "" {
		if path, err = store.DefaultSessionPath(); err != nil {
			return err
		}
	}
	a.c = c
	a.toasts = &store.Toasts{}
	a.auth = store.NewAuthStore(c, store.FileTokenStore{Path: path}, a.toasts)
	return a.auth.Load()
}

// ctx bounds one request-response command.
func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

func (a *app) requireLogin() error {
	if !a.auth.LoggedIn() {
		return client.ErrUnauthorized
	}
	return nil
}

// toasts go to stderr so --json output stays parseable.
func (a *app) flushToasts() {
	if a.toasts == nil {
		return
	}
	for _, f := range a.toasts.Drain() {
		if f.Kind == view.FlashError {
			continue // returned as the command error
		}
		fmt.Fprintln(a.errOut, f.Message)
	}
}

// emit prints v as JSON with --json, otherwise runs table.
func (a *app) emit(v any, table func(w *tabwriter.Writer)) error {
	if a.asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	table(w)
	return w.Flush()
}

func money(cents int, currency string) string { return view.MoneyFromCents(cents, currency) }

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
