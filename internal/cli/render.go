package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/ppiankov/cslbridge/internal/document"
)

var (
	renderFormat  string
	renderOutput  string
	renderTimeout time.Duration
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render <document.yaml>",
	Short: "Render the citations and bibliography of one document",
	Long: `Render loads a document, rebuilds a fresh engine session from all of
its citations in document order, and prints:
- the rendered text of every citation cluster
- the rendered previews, if the document asks for any
- the bibliography, cited items first plus any uncited items

Example:
  cslbridge render thesis.yaml
  cslbridge render thesis.yaml --format plain
  cslbridge render thesis.yaml --json --output thesis.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderFormat, "format", "", "output format: html, plain (text), rtf (overrides the document)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write output to a file instead of stdout")
	renderCmd.Flags().DurationVar(&renderTimeout, "timeout", time.Minute, "overall render timeout")
}

func runRender(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Output.Verbose)

	ctx, cancel := context.WithTimeout(cmd.Context(), renderTimeout)
	defer cancel()

	doc, err := document.Load(args[0])
	if err != nil {
		return err
	}
	if renderFormat != "" {
		doc.Format = renderFormat
	}

	renderer, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Rendering: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "Engine: %s\n", cfg.Engine.Backend)
		fmt.Fprintln(os.Stderr)
	}

	result, err := renderer.Render(ctx, doc)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	result.Path = args[0]

	out := cmd.OutOrStdout()
	if renderOutput != "" {
		var f *os.File
		f, err = os.Create(renderOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
		}()
		out = f
	}

	if cfg.Output.JSON {
		return writeJSON(out, result)
	}
	return writeText(out, result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// writeText prints clusters one per line, then the bibliography wrapped in
// its bibstart/bibend markup when the format has any
func writeText(w io.Writer, result *document.Result) error {
	var err error
	printf := func(format string, a ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, format, a...)
	}

	if result.Title != "" {
		printf("%s\n\n", result.Title)
	}

	printf("Citations\n")
	for _, c := range result.Clusters {
		printf("  [%s] %s\n", c.ID, c.Text)
	}

	if len(result.Previews) > 0 {
		printf("\nPreviews\n")
		for _, p := range result.Previews {
			anchor := p.After
			if anchor == "" {
				anchor = "start"
			}
			printf("  after %s: %s\n", anchor, p.Text)
		}
	}

	printf("\nBibliography\n")
	if start, ok := result.Bibliography.Meta["bibstart"].(string); ok {
		printf("%s\n", start)
	}
	for _, entry := range result.Bibliography.Entries {
		printf("%s", entry)
		if result.Format != "plain" {
			printf("\n")
		}
	}
	if end, ok := result.Bibliography.Meta["bibend"].(string); ok {
		printf("%s\n", end)
	}

	return err
}
