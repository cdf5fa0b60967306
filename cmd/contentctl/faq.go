package main

import (
	"fmt"
	"strings"

	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/spf13/cobra"
)

func (c *cli) faqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faq",
		Short: "List, add or delete FAQ entries in the local files",
		Long: `The faq commands edit pages.faq.questions in the local locale files.

Adding and deleting touch both locales so the English and Arabic lists stay aligned.`,
	}
	cmd.AddCommand(c.faqListCmd(), c.faqAddCmd(), c.faqDeleteCmd())
	return cmd
}

func (c *cli) faqListCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the FAQ entries of one locale",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, ok := locale.Parse(lang)
			if !ok {
				return fmt.Errorf("invalid locale %q", lang)
			}
			doc, err := c.local().Load(l)
			if err != nil {
				return err
			}
			items := doc.FAQs()
			if c.jsonOutput {
				return c.printJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no questions")
				return nil
			}
			for i, item := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n   %s\n", i, item.Question, item.Answer)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "locale", "l", "en", "locale to list (en or ar)")
	return cmd
}

func (c *cli) faqAddCmd() *cobra.Command {
	var enQ, enA, arQ, arA string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a question to both locales",
		Long: `Add appends one question to the English and the Arabic FAQ.

Example:
  contentctl faq add --question "How long does treatment take?" --answer "Usually 12 to 24 months." \
    --question-ar "كم تستغرق مدة العلاج؟" --answer-ar "عادة من 12 إلى 24 شهرا."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := map[locale.Locale]dictionary.FAQ{
				locale.English: {Question: enQ, Answer: enA},
				locale.Arabic:  {Question: arQ, Answer: arA},
			}
			// 阿语缺省时沿用英文，保持两边条目数量一致
			if strings.TrimSpace(arQ) == "" {
				items[locale.Arabic] = items[locale.English]
			}
			return c.editBoth(cmd, func(l locale.Locale, doc dictionary.Dictionary) error {
				return doc.AddFAQ(items[l])
			})
		},
	}
	cmd.Flags().StringVar(&enQ, "question", "", "English question (required)")
	cmd.Flags().StringVar(&enA, "answer", "", "English answer, markdown allowed")
	cmd.Flags().StringVar(&arQ, "question-ar", "", "Arabic question (default: the English one)")
	cmd.Flags().StringVar(&arA, "answer-ar", "", "Arabic answer")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func (c *cli) faqDeleteCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the question at an index from both locales",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.editBoth(cmd, func(l locale.Locale, doc dictionary.Dictionary) error {
				removed, err := doc.DeleteFAQ(index)
				if err != nil {
					return fmt.Errorf("%s: %w", l, err)
				}
				c.log.Debug().Str("locale", l.String()).Str("question", removed.Question).Msg("faq removed")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", -1, "0-based position as shown by faq list (required)")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

// editBoth loads both locale files, applies edit to each, and saves only when every edit
// succeeded.
func (c *cli) editBoth(cmd *cobra.Command, edit func(locale.Locale, dictionary.Dictionary) error) error {
	src := c.local()
	docs := make(map[locale.Locale]dictionary.Dictionary, len(locale.Supported))
	for _, l := range locale.Supported {
		doc, err := src.Load(l)
		if err != nil {
			return err
		}
		if err := edit(l, doc); err != nil {
			return err
		}
		docs[l] = doc
	}

	backups := map[string]string{}
	for _, l := range locale.Supported {
		backup, err := src.Save(l, docs[l])
		if err != nil {
			return fmt.Errorf("save %s: %w", l, err)
		}
		backups[l.String()] = backup
	}

	if c.jsonOutput {
		return c.printJSON(cmd, map[string]any{"count": len(docs[locale.English].FAQs()), "backups": backups})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %d questions per locale\n", len(docs[locale.English].FAQs()))
	return nil
}
