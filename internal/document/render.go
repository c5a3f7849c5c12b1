package document

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/cslbridge/internal/citeproc"
	"github.com/ppiankov/cslbridge/internal/engine"
	"github.com/ppiankov/cslbridge/internal/model"
)

// Result is the rendered output of one document
type Result struct {
	Path         string                `json:"path,omitempty"`
	Title        string                `json:"title,omitempty"`
	Style        string                `json:"style"`
	Format       string                `json:"format"`
	Clusters     []model.ClusterUpdate `json:"clusters"`
	Previews     []PreviewResult       `json:"previews,omitempty"`
	Bibliography Bibliography          `json:"bibliography"`
}

// PreviewResult is the text a preview citation would render as
type PreviewResult struct {
	After string `json:"after,omitempty"`
	Text  string `json:"text"`
}

// Bibliography is the legacy-shaped bibliography output
type Bibliography struct {
	Meta    model.BibliographyMeta `json:"meta"`
	Entries []string               `json:"entries"`
}

// Defaults fill what a document leaves unset
type Defaults struct {
	Locale string
	Format string
}

// Renderer renders documents, opening one session per document
type Renderer struct {
	newDriver engine.Constructor
	locales   citeproc.LocaleRetriever
	defaults  Defaults
	logger    *slog.Logger
}

// NewRenderer creates a renderer. A nil logger means slog.Default().
func NewRenderer(newDriver engine.Constructor, locales citeproc.LocaleRetriever, defaults Defaults, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		newDriver: newDriver,
		locales:   locales,
		defaults:  defaults,
		logger:    logger,
	}
}

// RenderFile loads and renders the document at path
func (r *Renderer) RenderFile(ctx context.Context, path string) (*Result, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}

	result, err := r.Render(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	result.Path = path
	return result, nil
}

// Render rebuilds a fresh session from the document, then collects the
// cluster texts, previews and bibliography
func (r *Renderer) Render(ctx context.Context, doc *Document) (*Result, error) {
	styleXML, err := doc.StyleXML()
	if err != nil {
		return nil, err
	}
	lib, err := doc.Library()
	if err != nil {
		return nil, err
	}

	cfg := citeproc.Config{
		Style:          doc.Style,
		StyleXML:       styleXML,
		Locale:         firstNonEmpty(doc.Locale, r.defaults.Locale),
		OverrideLocale: doc.OverrideLocale,
		Format:         firstNonEmpty(doc.Format, r.defaults.Format),
	}

	session, err := citeproc.NewSession(ctx, r.newDriver,
		citeproc.System{Items: lib, Locales: r.locales}, cfg,
		citeproc.WithLogger(r.logger))
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() { _ = session.Free(true) }()

	if err := session.RebuildProcessorState(ctx, doc.Citations, cfg.Format, doc.Uncited); err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}

	clusters, err := session.GetBatchedUpdates()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Title:    doc.Title,
		Style:    doc.Style,
		Format:   session.Format(),
		Clusters: clusters,
	}

	for _, p := range doc.Previews {
		before, after := doc.split(p.After)
		citation := p.Citation
		text, err := session.PreviewCitation(ctx, &citation, before, after, p.Format)
		if err != nil {
			return nil, fmt.Errorf("preview after %q: %w", p.After, err)
		}
		result.Previews = append(result.Previews, PreviewResult{After: p.After, Text: text})
	}

	meta, entries, err := session.MakeBibliography()
	if err != nil {
		return nil, err
	}
	result.Bibliography = Bibliography{Meta: meta, Entries: entries}

	r.logger.Debug("document rendered",
		"style", doc.Style,
		"clusters", len(clusters),
		"entries", len(entries))
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
