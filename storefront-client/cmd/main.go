package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/template_store/pkg/circuitbreaker"
	"github.com/fjod/template_store/pkg/logger"
	"github.com/fjod/template_store/storefront-client/internal/api"
	"github.com/fjod/template_store/storefront-client/internal/auth"
	"github.com/fjod/template_store/storefront-client/internal/catalog"
	"github.com/fjod/template_store/storefront-client/internal/config"
	"github.com/fjod/template_store/storefront-client/internal/flow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	client  *api.Client
	catalog *catalog.Catalog
	auth    *auth.Context
	flow    *flow.Controller
}

type rootFlags struct {
	configPath string
	baseURL    string
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		flags rootFlags
		a     = &app{}
	)

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Browse and buy website templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			built, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			*a = *built
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd.Context(), a)
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultPath(), "path to the client config file")
	pf.StringVar(&flags.baseURL, "url", "", "storefront service URL (overrides config and "+config.EnvBaseURL+")")
	pf.BoolVar(&flags.debug, "debug", false, "verbose logging to stderr")

	root.AddCommand(
		newBrowseCmd(a),
		newSearchCmd(a),
		newBuyCmd(a),
		newLoginCmd(a),
		newRegisterCmd(a),
		newPurchasesCmd(a),
		newWhoamiCmd(a),
		newLogoutCmd(a),
	)
	return root
}

func newApp(ctx context.Context, flags rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.baseURL != "" {
		cfg.BaseURL = flags.baseURL
	}
	if flags.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lg, err := logger.NewConsole(cfg.Debug)
	if err != nil {
		return nil, err
	}

	client, err := api.New(cfg.BaseURL,
		api.WithTimeout(cfg.Timeout),
		api.WithLogger(lg),
		api.WithBreaker(circuitbreaker.DefaultConfig("storefront-service")),
	)
	if err != nil {
		return nil, err
	}

	entries := catalog.Builtin()
	if cfg.CatalogSource == config.SourceRemote {
		remote, err := client.Templates(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load remote catalog: %w", err)
		}
		entries = remote
	}
	cat := catalog.New(entries)

	sessions := auth.NewContext(client, lg)
	ctrl := flow.NewController(cat, client, sessions, lg)
	sessions.OnReload(func() {
		client.ResetSession()
		ctrl.Reset()
	})

	lg.Debug("client ready",
		zap.String("base_url", cfg.BaseURL),
		zap.String("catalog_source", cfg.CatalogSource),
		zap.Int("templates", cat.Len()))

	return &app{
		cfg:     cfg,
		log:     lg,
		client:  client,
		catalog: cat,
		auth:    sessions,
		flow:    ctrl,
	}, nil
}
