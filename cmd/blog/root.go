package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/DoctorGattino/blog/cache"
	"github.com/DoctorGattino/blog/client"
	"github.com/DoctorGattino/blog/config"
	"github.com/DoctorGattino/blog/events"
	"github.com/DoctorGattino/blog/session"
	"github.com/DoctorGattino/blog/types"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// app holds what a command needs, built once per invocation
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     session.Store
	session   *session.Manager
	api       *client.Client
	cache     *cache.Manager
	publisher events.Publisher
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "blog",
		Short:         "Command-line client for the blog platform",
		Long:          "blog reads and writes articles on the blog platform, keeping a local cache that updates optimistically while requests are in flight.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger()
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "blog %s (commit: %s)\n", version, commit)
			},
		},
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newFavoriteCmd(a, true),
		newFavoriteCmd(a, false),
		newCreateCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newEventsCmd(a),
		newTUICmd(a),
		newMockAPICmd(a),
	)
	return root
}

// open restores the session and wires the client and cache
func (a *app) open(ctx context.Context, opts ...cache.Option) error {
	if a.cache != nil {
		return nil
	}

	store, err := session.OpenStore(a.cfg)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	a.store = store
	a.session = session.NewManager(store, session.WithLogger(a.logger))
	if err := a.session.Load(ctx); err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	a.api = client.New(a.cfg.APIURL,
		client.WithTimeout(a.cfg.RequestTimeout),
		client.WithTokenSource(a.session))

	a.publisher = events.NopPublisher{}
	if len(a.cfg.Kafka.Brokers) > 0 {
		p, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: a.cfg.Kafka.Brokers, Topic: a.cfg.Kafka.Topic}, a.logger)
		if err != nil {
			return fmt.Errorf("connecting to kafka: %w", err)
		}
		a.publisher = p
	}

	opts = append([]cache.Option{cache.WithLogger(a.logger), cache.WithPublisher(a.publisher)}, opts...)
	a.cache = cache.NewManager(a.api, a.session, opts...)
	return nil
}

func (a *app) close() error {
	var first error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			first = err
		}
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *app) pageKey(page int) types.PageKey {
	return types.PageKey{Page: page, Limit: a.cfg.PageSize}
}
