// Package basic is a small in-memory citation engine. It renders author-date
// citations and a simple bibliography, tracks document order and reports
// changed clusters. It does not interpret CSL styles.
package basic

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/cslbridge/internal/engine"
	"github.com/ppiankov/cslbridge/internal/model"
)

// Name is the registry name of this backend
const Name = "basic"

const fallbackLocale = "en-US"

// ErrFreed is returned by every method of a freed handle
var ErrFreed = errors.New("basic engine: handle already freed")

// Backend returns the registry entry for the basic engine
func Backend() engine.Backend {
	return engine.Backend{
		Name: Name,
		New: func(ctx context.Context, opts engine.Options) (engine.Driver, error) {
			return New(ctx, opts)
		},
	}
}

// Driver is a basic engine handle
type Driver struct {
	format        string
	locale        string
	localeXML     string
	sortCitations bool

	refs     map[string]model.Reference
	clusters map[string]model.Cluster
	order    []model.ClusterPosition
	uncited  []string
	reported map[string]string
	freed    bool
}

// New creates a handle. The style must be well-formed XML with a <style>
// root element; its default-locale is used unless opts.LocaleOverride is set.
func New(ctx context.Context, opts engine.Options) (*Driver, error) {
	if err := checkFormat(opts.Format); err != nil {
		return nil, err
	}

	defaultLocale, err := sniffStyle(opts.Style)
	if err != nil {
		return nil, fmt.Errorf("parse style: %w", err)
	}

	lang := opts.LocaleOverride
	if lang == "" {
		lang = defaultLocale
	}
	if lang == "" {
		lang = fallbackLocale
	}

	var localeXML string
	if opts.Fetcher != nil {
		localeXML, err = opts.Fetcher.FetchLocale(ctx, lang)
		if err != nil {
			return nil, fmt.Errorf("fetch locale %s: %w", lang, err)
		}
	}

	return &Driver{
		format:        opts.Format,
		locale:        lang,
		localeXML:     localeXML,
		sortCitations: opts.SortCitations,
		refs:          make(map[string]model.Reference),
		clusters:      make(map[string]model.Cluster),
		reported:      make(map[string]string),
	}, nil
}

// sniffStyle checks the root element and returns its default-locale attribute
func sniffStyle(style string) (string, error) {
	if strings.TrimSpace(style) == "" {
		return "", errors.New("empty style")
	}

	dec := xml.NewDecoder(strings.NewReader(style))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", errors.New("no root element")
		}
		if err != nil {
			return "", err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "style" {
			return "", fmt.Errorf("root element is <%s>, want <style>", start.Name.Local)
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "default-locale" {
				return attr.Value, nil
			}
		}
		return "", nil
	}
}

func checkFormat(format string) error {
	switch format {
	case "html", "plain", "rtf":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q", format)
	}
}

// Locale returns the language tag the handle was created with
func (d *Driver) Locale() string {
	return d.locale
}

// Format returns the current output format
func (d *Driver) Format() string {
	return d.format
}

// Free releases the handle
func (d *Driver) Free() error {
	if d.freed {
		return ErrFreed
	}
	d.freed = true
	d.refs = nil
	d.clusters = nil
	d.reported = nil
	return nil
}

// SetOutputFormat switches the output format. Every cluster will be reported
// again by the next BatchedUpdates call since its text changes.
func (d *Driver) SetOutputFormat(format string) error {
	if d.freed {
		return ErrFreed
	}
	if err := checkFormat(format); err != nil {
		return err
	}
	d.format = format
	return nil
}

// InsertReference adds or replaces a reference
func (d *Driver) InsertReference(ref model.Reference) error {
	if d.freed {
		return ErrFreed
	}
	id, ok := ref.ID().(string)
	if !ok || id == "" {
		return fmt.Errorf("reference id must be a non-empty string, got %T", ref.ID())
	}
	d.refs[id] = ref.Clone()
	return nil
}

// InsertCluster adds or replaces a cluster
func (d *Driver) InsertCluster(cluster model.Cluster) error {
	if d.freed {
		return ErrFreed
	}
	if cluster.ID == "" {
		return errors.New("cluster id is required")
	}
	cites := make([]model.Cite, len(cluster.Cites))
	copy(cites, cluster.Cites)
	cluster.Cites = cites
	d.clusters[cluster.ID] = cluster
	return nil
}

// PreviewCluster renders cluster at its place in order without storing it
func (d *Driver) PreviewCluster(cluster model.Cluster, order []model.ClusterPosition, format string) (string, error) {
	if d.freed {
		return "", ErrFreed
	}
	if err := checkFormat(format); err != nil {
		return "", err
	}

	lookup := func(id string) (model.Cluster, bool) {
		if id == cluster.ID {
			return cluster, true
		}
		c, ok := d.clusters[id]
		return c, ok
	}

	r := d.renderer(format)
	var prev *model.Cluster
	for _, pos := range order {
		c, ok := lookup(pos.ID)
		if !ok {
			prev = nil
			continue
		}
		c.Note = pos.Note
		if c.ID == cluster.ID {
			return r.cluster(c, prev), nil
		}
		prev = &c
	}

	return "", fmt.Errorf("cluster %q not in preview order", cluster.ID)
}

// SetClusterOrder replaces the document order
func (d *Driver) SetClusterOrder(order []model.ClusterPosition) error {
	if d.freed {
		return ErrFreed
	}
	d.order = append([]model.ClusterPosition(nil), order...)
	return nil
}

// BatchedUpdates returns ordered clusters whose text changed since the last call
func (d *Driver) BatchedUpdates() ([]model.ClusterUpdate, error) {
	if d.freed {
		return nil, ErrFreed
	}

	var updates []model.ClusterUpdate
	for _, u := range d.renderOrder() {
		if last, ok := d.reported[u.ID]; ok && last == u.Text {
			continue
		}
		d.reported[u.ID] = u.Text
		updates = append(updates, u)
	}
	return updates, nil
}

// IncludeUncited sets the specific uncited references to include
func (d *Driver) IncludeUncited(uncited model.IncludeUncited) error {
	if d.freed {
		return ErrFreed
	}
	d.uncited = append([]string(nil), uncited.Specific...)
	return nil
}

// renderOrder renders every cluster in document order
func (d *Driver) renderOrder() []model.ClusterUpdate {
	r := d.renderer(d.format)
	out := make([]model.ClusterUpdate, 0, len(d.order))

	var prev *model.Cluster
	for _, pos := range d.order {
		c, ok := d.clusters[pos.ID]
		if !ok {
			prev = nil
			continue
		}
		c.Note = pos.Note
		out = append(out, model.ClusterUpdate{ID: c.ID, Text: r.cluster(c, prev)})
		prev = &c
	}
	return out
}

func (d *Driver) renderer(format string) *renderer {
	return &renderer{
		format:        format,
		refs:          d.refs,
		sortCitations: d.sortCitations,
	}
}
