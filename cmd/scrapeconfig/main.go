package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docs-assistant/internal/config"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/scraper/web"
)

var errInvalidWhitelist = errors.New("scraping whitelist has invalid entries")

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	whitelist := web.NewWhitelist(cfg.AllowedScrapeURLs, cfg.AllowedScrapeDomains)

	var asJSON bool
	root := &cobra.Command{
		Use:           "scrapeconfig",
		Short:         "Inspect the web scraping whitelist",
		Long:          `Prints the configured scraping targets and fails when an entry is malformed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShow(cmd, whitelist, asJSON)
		},
	}
	root.Flags().BoolVar(&asJSON, "json", false, "Print the whitelist as JSON")

	checkCmd := &cobra.Command{
		Use:   "check [url...]",
		Short: "Report whether URLs may be scraped",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, whitelist, args)
		},
	}
	root.AddCommand(checkCmd)
	return root
}

func runShow(cmd *cobra.Command, whitelist *web.Whitelist, asJSON bool) error {
	out := cmd.OutOrStdout()
	problems := whitelist.Validate()

	if asJSON {
		payload := struct {
			Enabled bool     `json:"enabled"`
			URLs    []string `json:"allowed_urls"`
			Domains []string `json:"allowed_domains"`
			Errors  []string `json:"errors,omitempty"`
		}{Enabled: whitelist.Enabled(), URLs: whitelist.URLs(), Domains: whitelist.Domains()}
		for _, p := range problems {
			payload.Errors = append(payload.Errors, p.Error())
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, whitelist.Targets())
		fmt.Fprintf(out, "urls: %d, domains: %d\n", len(whitelist.URLs()), len(whitelist.Domains()))
		for _, p := range problems {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", p)
		}
	}

	if len(problems) > 0 {
		return errInvalidWhitelist
	}
	return nil
}

func runCheck(cmd *cobra.Command, whitelist *web.Whitelist, urls []string) error {
	denied := 0
	for _, u := range urls {
		verdict := "allowed"
		if !whitelist.Allows(u) {
			verdict = "denied"
			denied++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", verdict, u)
	}
	if denied > 0 {
		return fmt.Errorf("%d of %d urls are not in the whitelist", denied, len(urls))
	}
	return nil
}
