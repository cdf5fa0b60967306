package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/service"
	"github.com/spf13/cobra"
)

func (c *cli) pushCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload the local locale files to the content store",
		Long: `Push decomposes en.json and ar.json into sections and upserts one row per section.

Photos still embedded in pages.gallery.cases are moved into gallery rows first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := c.local()
			docs := map[locale.Locale]dictionary.Dictionary{}
			for _, l := range locale.Supported {
				doc, err := src.Load(l)
				var notFound *localfile.NotFoundError
				if errors.As(err, &notFound) {
					c.log.Warn().Str("path", notFound.Path).Msg("locale file missing, skipped")
					continue
				}
				if err != nil {
					return err
				}
				docs[l] = doc
			}
			if len(docs) == 0 {
				return fmt.Errorf("no locale files under %s", src.Dir())
			}

			if dryRun {
				plan := map[string][]string{}
				for l, doc := range docs {
					for _, section := range dictionary.Decompose(doc) {
						plan[l.String()] = append(plan[l.String()], section.Name)
					}
					sort.Strings(plan[l.String()])
				}
				if c.jsonOutput {
					return c.printJSON(cmd, plan)
				}
				for _, l := range locale.Supported {
					if sections, ok := plan[l.String()]; ok {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sections %v\n", l, len(sections), sections)
					}
				}
				return nil
			}

			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Gallery.MigrateLegacyCases(ctx, docs[locale.English], docs[locale.Arabic])
			if err != nil {
				return err
			}
			for l := range docs {
				if cleaned, ok := report.Cleaned[l]; ok {
					docs[l] = cleaned
				}
			}

			results, err := a.Sync.SyncAll(ctx, docs, nil)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(cmd, map[string]any{"results": results, "gallery": map[string]int{"cases": report.Cases, "rows": report.Rows}})
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: pushed %d sections\n", r.Locale, len(r.Sections))
			}
			if report.Rows > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "gallery: migrated %d rows across %d cases\n", report.Rows, report.Cases)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the sections that would be written without contacting the store")
	return cmd
}

func (c *cli) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download the stored dictionaries into the local locale files",
		Long:  `Pull assembles each locale from the store and overwrites the local file, keeping a backup of the previous one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			pulled := map[string]string{}
			for _, l := range locale.Supported {
				doc, err := a.Content.Remote(ctx, l)
				if errors.Is(err, service.ErrNoContent) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: store is empty, local file left as is\n", l)
					continue
				}
				if err != nil {
					return fmt.Errorf("pull %s: %w", l, err)
				}
				backup, err := a.Sync.SaveLocal(l, doc)
				if err != nil {
					return fmt.Errorf("save %s: %w", l, err)
				}
				pulled[l.String()] = backup
				if !c.jsonOutput {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %s\n", l, a.Local.Path(l))
				}
			}
			if c.jsonOutput {
				return c.printJSON(cmd, map[string]any{"backups": pulled})
			}
			return nil
		},
	}
}
