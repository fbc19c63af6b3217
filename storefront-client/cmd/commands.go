package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fjod/template_store/storefront-client/internal/auth"
	"github.com/fjod/template_store/storefront-client/internal/catalog"
	"github.com/fjod/template_store/storefront-client/internal/flow"
	"github.com/fjod/template_store/storefront-client/internal/tui"
	"github.com/spf13/cobra"
)

const envPassword = "STOREFRONT_PASSWORD"

var errLoginRequired = errors.New("login required: pass --password or set " + envPassword)

func runBrowse(ctx context.Context, a *app) error {
	return tui.Run(ctx, tui.Deps{
		Catalog:    a.catalog,
		Controller: a.flow,
		Auth:       a.auth,
		Logger:     a.log,
	})
}

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Open the interactive gallery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd.Context(), a)
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "List templates whose name, description or category match",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return catalog.WriteText(cmd.OutOrStdout(), catalog.Render(a.catalog.Filter(query)))
		},
	}
}

type credentials struct {
	email    string
	password string
}

func (c *credentials) register(cmd *cobra.Command, emailUsage string) {
	cmd.Flags().StringVar(&c.email, "email", "", emailUsage)
	cmd.Flags().StringVar(&c.password, "password", "", "account password (or "+envPassword+")")
}

func (c credentials) secret() string {
	if c.password != "" {
		return c.password
	}
	return os.Getenv(envPassword)
}

// login signs in when a password was supplied. The session lives in the
// client's cookie jar for the rest of the command.
func (c credentials) login(ctx context.Context, a *app) error {
	password := c.secret()
	if password == "" {
		return nil
	}
	if c.email == "" {
		return errors.New("--email is required to log in")
	}
	_, err := a.auth.Login(ctx, c.email, password)
	return describe(err)
}

func newBuyCmd(a *app) *cobra.Command {
	var (
		creds credentials
		name  string
	)
	cmd := &cobra.Command{
		Use:   "buy <template-id>",
		Short: "Buy a template and request its download without the interactive UI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid template id %q", args[0])
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if err := creds.login(ctx, a); err != nil {
				return err
			}

			f, err := a.flow.Open(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, f.Title())

			f, err = a.flow.Proceed(ctx, flow.CustomerInfo{Name: name, Email: creds.email})
			if err != nil {
				return describe(err)
			}
			if f.LoginRequested() {
				return errLoginRequired
			}

			qr, err := flow.RenderQR(f.PaymentCode())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, qr)
			fmt.Fprintln(out, catalog.FormatPrice(f.Entry().Price))

			if f, err = a.flow.Confirm(ctx); err != nil {
				return describe(err)
			}
			fmt.Fprintln(out, f.Purchase().Message)

			if f, err = a.flow.Download(ctx); err != nil {
				return describe(err)
			}
			fmt.Fprintln(out, f.Notice())
			if u := f.Download().DownloadURL; u != "" {
				fmt.Fprintln(out, a.client.BaseURL()+u)
			}
			return nil
		},
	}
	creds.register(cmd, "contact email, also used to log in")
	cmd.Flags().StringVar(&name, "name", "", "customer name")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials against the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if creds.secret() == "" {
				return errLoginRequired
			}
			if err := creds.login(cmd.Context(), a); err != nil {
				return err
			}
			return printGreeting(cmd, a)
		},
	}
	creds.register(cmd, "account email")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var (
		creds    credentials
		username string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.auth.Register(cmd.Context(), username, creds.email, creds.secret()); err != nil {
				return describe(err)
			}
			return printGreeting(cmd, a)
		},
	}
	creds.register(cmd, "account email")
	cmd.Flags().StringVar(&username, "username", "", "user name")
	return cmd
}

func newPurchasesCmd(a *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "purchases",
		Short: "List purchased templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := creds.login(ctx, a); err != nil {
				return err
			}
			resp, err := a.client.Purchases(ctx)
			if err != nil {
				return err
			}
			if !resp.Success {
				if resp.Message != "" {
					return errors.New(resp.Message)
				}
				return errLoginRequired
			}

			out := cmd.OutOrStdout()
			if len(resp.Templates) == 0 {
				fmt.Fprintln(out, "Покупок пока нет")
				return nil
			}
			for _, t := range resp.Templates {
				fmt.Fprintf(out, "%d\t%s\t%s\n", t.ID, t.Name, t.PurchaseDate)
			}
			return nil
		},
	}
	creds.register(cmd, "account email")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the session the service reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := creds.login(ctx, a); err != nil {
				return err
			}
			s, err := a.auth.Current(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !s.Authenticated {
				fmt.Fprintln(out, "Вы не вошли")
				return nil
			}
			fmt.Fprintf(out, "%s <%s>\n", auth.NavFor(s).Greeting, s.User.Email)
			return nil
		},
	}
	creds.register(cmd, "account email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session on the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := creds.login(ctx, a); err != nil {
				return err
			}
			if err := a.auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Вы вышли")
			return nil
		},
	}
	creds.register(cmd, "account email")
	return cmd
}

func printGreeting(cmd *cobra.Command, a *app) error {
	s, err := a.auth.Current(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), auth.NavFor(s).Greeting)
	return nil
}

// describe surfaces the service's own message for rejected logins.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var rejected *auth.RejectedError
	if errors.As(err, &rejected) {
		return errors.New(rejected.Message)
	}
	return err
}
