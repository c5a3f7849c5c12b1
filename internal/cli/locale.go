package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var localeTimeout time.Duration

// localeCmd groups locale commands
var localeCmd = &cobra.Command{
	Use:   "locale",
	Short: "Inspect and prefetch CSL locales",
}

var localeGetCmd = &cobra.Command{
	Use:   "get <lang>...",
	Short: "Retrieve locales and print them (warms the cache)",
	Long: `Get retrieves each locale through the configured sources: the local
locale directory first, then the remote locales repository. Results are
stored in the locale cache when caching is enabled.

Example:
  cslbridge locale get en-US
  cslbridge locale get de fr-FR --quiet`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLocaleGet,
}

var localeQuiet bool

func init() {
	rootCmd.AddCommand(localeCmd)
	localeCmd.AddCommand(localeGetCmd)

	localeGetCmd.Flags().DurationVar(&localeTimeout, "timeout", time.Minute, "overall timeout")
	localeGetCmd.Flags().BoolVarP(&localeQuiet, "quiet", "q", false, "only report sizes, do not print the XML")
}

func runLocaleGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Output.Verbose)

	locales, err := newLocales(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), localeTimeout)
	defer cancel()

	for _, lang := range args {
		xml, err := locales.RetrieveLocale(ctx, lang)
		if err != nil {
			return fmt.Errorf("locale %s: %w", lang, err)
		}

		if localeQuiet {
			fmt.Fprintf(os.Stderr, "✓ %s (%d bytes)\n", lang, len(xml))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), xml)
	}
	return nil
}
