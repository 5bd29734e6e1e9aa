package main

import (
	"context"
	"fmt"

	"github.com/DoctorGattino/blog/archive"
	"github.com/DoctorGattino/blog/common"
	"github.com/DoctorGattino/blog/types"

	"github.com/spf13/cobra"
)

func (a *app) exporter(ctx context.Context, opts ...archive.Option) (*archive.Exporter, error) {
	s3cfg := a.cfg.S3
	if s3cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is not set")
	}
	store, err := common.NewS3(ctx, common.S3Config{
		Bucket:       s3cfg.Bucket,
		Region:       s3cfg.Region,
		Profile:      s3cfg.Profile,
		Endpoint:     s3cfg.Endpoint,
		UsePathStyle: s3cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to S3: %w", err)
	}
	opts = append([]archive.Option{archive.WithLogger(a.logger)}, opts...)
	return archive.NewExporter(store, s3cfg.Prefix, opts...), nil
}

func newExportCmd(a *app) *cobra.Command {
	var (
		pages     int
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy articles to S3 as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []archive.Option
			if overwrite {
				opts = append(opts, archive.WithOverwrite())
			}
			exp, err := a.exporter(cmd.Context(), opts...)
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}

			src := archive.PageSourceFunc(func(ctx context.Context, key types.PageKey) (types.ArticlePage, error) {
				p, _, err := a.cache.Page(ctx, key)
				return p, err
			})
			res, err := exp.ExportPages(cmd.Context(), src, a.cfg.PageSize, pages)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pages: %d written, %d already archived\n", res.Pages, res.Written, res.Unchanged)
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 0, "stop after this many pages (0 for all)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "rewrite articles that are already archived")

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List archived article slugs",
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := a.exporter(cmd.Context())
			if err != nil {
				return err
			}
			slugs, err := exp.Slugs(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range slugs {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cat <slug>",
		Short: "Print an archived article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := a.exporter(cmd.Context())
			if err != nil {
				return err
			}
			article, err := exp.Load(cmd.Context(), args[0])
			if err != nil {
				if common.IsNotFound(err) {
					return fmt.Errorf("%s is not archived", args[0])
				}
				return err
			}
			writeArticle(cmd.OutOrStdout(), article)
			return nil
		},
	})
	return cmd
}
