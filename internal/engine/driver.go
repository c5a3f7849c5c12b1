package engine

import (
	"context"

	"github.com/ppiankov/cslbridge/internal/model"
)

// Driver is a live handle to a citation-processing engine bound to one
// style, locale and output format. A Driver is not safe for concurrent use;
// it is owned by exactly one session.
type Driver interface {
	// Free releases the handle. The handle must not be used afterwards.
	Free() error

	// SetOutputFormat switches the output format in place
	SetOutputFormat(format string) error

	// InsertReference adds or replaces a reference record
	InsertReference(ref model.Reference) error

	// InsertCluster adds or replaces a cluster (matched by cluster id)
	InsertCluster(cluster model.Cluster) error

	// PreviewCluster renders a cluster against a hypothetical document order
	// without changing committed state
	PreviewCluster(cluster model.Cluster, order []model.ClusterPosition, format string) (string, error)

	// SetClusterOrder replaces the whole-document cluster order
	SetClusterOrder(order []model.ClusterPosition) error

	// BatchedUpdates returns the clusters whose rendered text changed since the last call
	BatchedUpdates() ([]model.ClusterUpdate, error)

	// IncludeUncited sets which uncited references appear in the bibliography
	IncludeUncited(uncited model.IncludeUncited) error

	// BibliographyMeta returns bibliography formatting metadata
	BibliographyMeta() (model.EngineBibliographyMeta, error)

	// MakeBibliography returns the formatted entries in bibliography order
	MakeBibliography() ([]model.BibEntry, error)
}

// LocaleFetcher retrieves locale XML for a language tag (e.g. "en-US")
type LocaleFetcher interface {
	FetchLocale(ctx context.Context, lang string) (string, error)
}

// LocaleFetcherFunc adapts a function to LocaleFetcher
type LocaleFetcherFunc func(ctx context.Context, lang string) (string, error)

// FetchLocale calls f(ctx, lang)
func (f LocaleFetcherFunc) FetchLocale(ctx context.Context, lang string) (string, error) {
	return f(ctx, lang)
}

// Options configures a new Driver
type Options struct {
	// Style is the CSL style XML source text
	Style string

	// Format is the output format: html, plain, rtf
	Format string

	// Fetcher supplies locale XML on demand
	Fetcher LocaleFetcher

	// LocaleOverride forces a locale regardless of the style's default-locale.
	// Empty means no override.
	LocaleOverride string

	// SortCitations sorts cites inside each cluster for display
	SortCitations bool
}

// Constructor creates a new Driver
type Constructor func(ctx context.Context, opts Options) (Driver, error)
