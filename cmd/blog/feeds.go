package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DoctorGattino/blog/rssfeeds"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		full      bool
		count     int
		schedule  string
		pageURL   string
		shared    bool
		sharedTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:   "import [feed]",
		Short: "Publish articles from an RSS/Atom feed or a web page",
		Long: fmt.Sprintf(`Turn feed entries into articles. The feed is a URL or one of the presets: %s.

With --schedule the import repeats on a cron spec (for example "@every 30m")
until interrupted; entries already imported in this process are skipped. With
--shared the imported set lives in Redis and survives restarts.`, strings.Join(rssfeeds.PresetNames(), ", ")),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if pageURL != "" {
				item, err := rssfeeds.FromURL(pageURL)
				if err != nil {
					return err
				}
				article, err := a.cache.CreateArticle(cmd.Context(), item.Draft, a.pageKey(1))
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(out, "Created %s\n", article.Slug)
				return nil
			}

			feed := rssfeeds.DefaultFeedPreset
			if len(args) == 1 {
				feed = args[0]
			}
			opts := []rssfeeds.ImporterOption{rssfeeds.WithMaxCount(count), rssfeeds.WithLogger(a.logger)}
			if full {
				opts = append(opts, rssfeeds.WithFullContent())
			}
			if shared {
				seen, err := rssfeeds.NewRedisSeen(a.cfg.Redis, rssfeeds.DefaultSeenKey, sharedTTL)
				if err != nil {
					return err
				}
				defer seen.Close()
				opts = append(opts, rssfeeds.WithSeenStore(seen))
			}
			im := rssfeeds.NewImporter(a.cache, a.pageKey(1), opts...)

			if schedule == "" {
				return runImport(cmd.Context(), im, feed, out)
			}
			return runScheduled(cmd.Context(), a, im, feed, schedule, out)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "replace feed summaries with the full page text")
	cmd.Flags().IntVarP(&count, "count", "n", rssfeeds.DefaultCount, "maximum entries per run")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec to repeat the import on")
	cmd.Flags().StringVar(&pageURL, "url", "", "import a single web page instead of a feed")
	cmd.Flags().BoolVar(&shared, "shared", false, "remember imported entries in Redis so other machines skip them")
	cmd.Flags().DurationVar(&sharedTTL, "shared-ttl", 30*24*time.Hour, "forget remembered entries this long after the last import")
	return cmd
}

func runImport(ctx context.Context, im *rssfeeds.Importer, feed string, out io.Writer) error {
	report, err := im.Run(ctx, feed)
	if report != nil {
		writeReport(out, report)
	}
	if err != nil {
		return describe(err)
	}
	return nil
}

// runScheduled repeats the import until ctx is done. Runs never overlap.
func runScheduled(ctx context.Context, a *app, im *rssfeeds.Importer, feed, spec string, out io.Writer) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if err := runImport(ctx, im, feed, out); err != nil {
			a.logger.Error("scheduled import failed", "feed", feed, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid --schedule %q: %w", spec, err)
	}

	a.logger.Info("import scheduled", "feed", rssfeeds.ResolveFeedURL(feed), "schedule", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func writeReport(w io.Writer, r *rssfeeds.Report) {
	fmt.Fprintf(w, "%s: %d fetched, %d created, %d already imported, %d failed\n",
		r.FeedURL, r.Fetched, len(r.Created), r.Skipped, len(r.Failures))
	for _, a := range r.Created {
		fmt.Fprintf(w, "  + %s\n", a.Slug)
	}
	for link, err := range r.Failures {
		fmt.Fprintf(w, "  ! %s: %v\n", link, err)
	}
}
