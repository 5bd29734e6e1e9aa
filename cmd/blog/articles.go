package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DoctorGattino/blog/types"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			key := a.pageKey(page)
			p, _, err := a.cache.Page(cmd.Context(), key)
			if err != nil {
				return describe(err)
			}
			writePage(cmd.OutOrStdout(), key, p)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <slug>",
		Short: "Print one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			article, _, err := a.cache.Article(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			writeArticle(cmd.OutOrStdout(), article)
			return nil
		},
	}
}

func newFavoriteCmd(a *app, on bool) *cobra.Command {
	var page int
	use, short := "unfavorite <slug>", "Remove your favorite from an article"
	if on {
		use, short = "favorite <slug>", "Favorite an article"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			call := a.cache.Unfavorite
			if on {
				call = a.cache.Favorite
			}
			article, err := call(cmd.Context(), args[0], a.pageKey(page))
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d)\n", heart(article.Favorited), article.Slug, article.FavoritesCount)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page the article is listed on")
	return cmd
}

// draftFlags binds the editable article fields
type draftFlags struct {
	title       string
	description string
	body        string
	bodyFile    string
	tags        []string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "article title")
	cmd.Flags().StringVar(&f.description, "description", "", "short description")
	cmd.Flags().StringVar(&f.body, "body", "", "article text (markdown)")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "read the article text from a file, - for stdin")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag, repeatable or comma separated")
}

func (f *draftFlags) readBody(in io.Reader) (string, error) {
	if f.bodyFile == "" {
		return f.body, nil
	}
	if f.bodyFile == "-" {
		data, err := io.ReadAll(in)
		return string(data), err
	}
	data, err := os.ReadFile(f.bodyFile)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return string(data), nil
}

func newCreateCmd(a *app) *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new article",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := f.readBody(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			draft := types.Draft{Title: f.title, Description: f.description, Body: body, TagList: f.tags}
			article, err := a.cache.CreateArticle(cmd.Context(), draft, a.pageKey(1))
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", article.Slug)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var f draftFlags
	var page int
	cmd := &cobra.Command{
		Use:   "edit <slug>",
		Short: "Change fields of an article you wrote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch types.ArticlePatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &f.title
			}
			if flags.Changed("description") {
				patch.Description = &f.description
			}
			if flags.Changed("body") || flags.Changed("body-file") {
				body, err := f.readBody(cmd.InOrStdin())
				if err != nil {
					return err
				}
				patch.Body = &body
			}
			if flags.Changed("tag") {
				tags := types.Draft{TagList: f.tags}.NormalizedTags()
				patch.TagList = &tags
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to change: pass at least one of --title, --description, --body, --tag")
			}

			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			article, err := a.cache.EditArticle(cmd.Context(), args[0], patch, a.pageKey(page))
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", article.Slug)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page the article is listed on")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete an article you wrote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.cache.DeleteArticle(cmd.Context(), args[0], a.pageKey(page)); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page the article is listed on")
	return cmd
}

func heart(on bool) string {
	if on {
		return "♥"
	}
	return "♡"
}

func writePage(w io.Writer, key types.PageKey, p types.ArticlePage) {
	if len(p.Articles) == 0 {
		fmt.Fprintln(w, "No articles yet")
		return
	}
	for _, a := range p.Articles {
		fmt.Fprintf(w, "%s %3d  %-40s  %s  %s\n",
			heart(a.Favorited), a.FavoritesCount, a.Slug, a.Author.Username, a.CreatedAt.Format("2006-01-02"))
		fmt.Fprintf(w, "        %s\n", a.Title)
	}
	fmt.Fprintf(w, "\npage %d of %d, %d articles\n", key.Page, max(types.TotalPages(p.ArticlesCount, key.Limit), 1), p.ArticlesCount)
}

func writeArticle(w io.Writer, a types.Article) {
	fmt.Fprintln(w, a.Title)
	fmt.Fprintf(w, "%s · %s · %s %d\n", a.Author.Username, a.CreatedAt.Format("January 2, 2006"), heart(a.Favorited), a.FavoritesCount)
	if len(a.TagList) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(a.TagList, ", "))
	}
	fmt.Fprintf(w, "\n%s\n\n%s\n", a.Description, a.Body)
}
