package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/client"
	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/feed"
	"github.com/spec-kit/service-portal/internal/lifecycle"
	"github.com/spec-kit/service-portal/internal/observability"
)

var version = "dev"

// app is the state shared by all subcommands once the root pre-run completes.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	api      *client.Client
	location *time.Location

	baseURL  string
	token    string
	kindFlag string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operate the service portal from the terminal",
		Long:          "portalctl lists, updates, replies to and deletes tickets and service requests through the portal API.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.baseURL, "api", "", "portal API base URL (default $PORTAL_API_URL)")
	flags.StringVar(&a.token, "token", "", "bearer token (default $PORTAL_API_TOKEN)")
	flags.StringVarP(&a.kindFlag, "kind", "k", "ticket", "entity kind: ticket or service-request")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log API calls")

	root.AddCommand(
		newLoginCmd(a),
		newOutletsCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newCreateCmd(a),
		newStatusCmd(a),
		newReplyCmd(a),
		newDeleteCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.baseURL != "" {
		cfg.Client.BaseURL = a.baseURL
	}
	if a.token != "" {
		cfg.Client.Token = a.token
	}
	if !a.verbose {
		cfg.Logger.Level = "error"
	}
	cfg.Logger.Name = "portalctl"
	cfg.Logger.Output = "stderr"

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.location = loc
	a.api = client.New(cfg.Client, logger)
	return nil
}

func (a *app) kind() (domain.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(a.kindFlag)) {
	case "ticket", "tickets":
		return domain.KindTicket, nil
	case "service-request", "service-requests", "service_request", "request", "sr":
		return domain.KindServiceRequest, nil
	}
	return "", fmt.Errorf("unknown kind %q", a.kindFlag)
}

// session builds the feed and controller a mutating command works through.
func (a *app) session(reloadOnReply bool) (*feed.Feed, *lifecycle.Controller, error) {
	kind, err := a.kind()
	if err != nil {
		return nil, nil, err
	}
	f := feed.New(kind, a.api, feed.WithPageSize(a.cfg.Client.PageSize), feed.WithLogger(a.logger))
	ctrl := lifecycle.NewController(a.api, f,
		lifecycle.WithLogger(a.logger),
		lifecycle.WithLocation(a.location),
		lifecycle.WithReloadOnReply(reloadOnReply))
	return f, ctrl, nil
}
