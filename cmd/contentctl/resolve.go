package main

import (
	"fmt"

	"github.com/shwanortho/site/internal/locale"
	"github.com/spf13/cobra"
)

func (c *cli) resolveCmd() *cobra.Command {
	var (
		lang string
		dump bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which source the site would serve a locale from",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, ok := locale.Parse(lang)
			if !ok {
				return fmt.Errorf("invalid locale %q", lang)
			}

			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Content.Resolve(ctx, l)
			if c.jsonOutput {
				out := map[string]any{
					"requested": res.Requested,
					"locale":    res.Locale,
					"source":    res.Source,
				}
				if dump {
					out["dictionary"] = res.Dictionary
				}
				return c.printJSON(cmd, out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requested=%s served=%s source=%s\n", res.Requested, res.Locale, res.Source)
			if dump {
				return c.printJSON(cmd, res.Dictionary)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "locale", "l", "en", "locale to resolve (en or ar)")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the resolved dictionary")
	return cmd
}
