package citeproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cast"

	"github.com/ppiankov/cslbridge/internal/engine"
	"github.com/ppiankov/cslbridge/internal/model"
)

const testStyle = `<?xml version="1.0" encoding="utf-8"?>
<style xmlns="http://purl.org/net/xbiblio/csl" class="in-text" version="1.0" default-locale="en-US"/>`

var errNotFound = errors.New("item not found")

// fakeItems is an in-memory item provider keyed by the string form of the id
type fakeItems struct {
	refs  map[string]model.Reference
	calls int
}

func newFakeItems(refs ...model.Reference) *fakeItems {
	f := &fakeItems{refs: make(map[string]model.Reference)}
	for _, r := range refs {
		f.refs[cast.ToString(r["id"])] = r
	}
	return f
}

func (f *fakeItems) RetrieveItem(ctx context.Context, id model.ItemID) (model.Reference, error) {
	f.calls++
	ref, ok := f.refs[cast.ToString(id)]
	if !ok {
		return nil, fmt.Errorf("%v: %w", id, errNotFound)
	}
	return ref.Clone(), nil
}

type fakeLocales struct {
	err   error
	langs []string
}

func (f *fakeLocales) RetrieveLocale(ctx context.Context, lang string) (string, error) {
	f.langs = append(f.langs, lang)
	if f.err != nil {
		return "", f.err
	}
	return `<locale xml:lang="` + lang + `"/>`, nil
}

// fakeDriver records every call made to it
type fakeDriver struct {
	id  int
	log *[]string

	format   string
	refs     map[string]model.Reference
	clusters []model.Cluster
	order    []model.ClusterPosition
	uncited  *model.IncludeUncited
	freeErr  error
	freed    bool

	formatSwitches int
	previewOrder   []model.ClusterPosition
	previewFormat  string
	updates        []model.ClusterUpdate
	meta           model.EngineBibliographyMeta
	entries        []model.BibEntry
}

func (d *fakeDriver) record(format string, args ...any) {
	if d.log != nil {
		*d.log = append(*d.log, fmt.Sprintf("d%d.", d.id)+fmt.Sprintf(format, args...))
	}
}

func (d *fakeDriver) Free() error {
	d.record("free")
	d.freed = true
	return d.freeErr
}

func (d *fakeDriver) SetOutputFormat(format string) error {
	d.record("format %s", format)
	d.formatSwitches++
	d.format = format
	return nil
}

func (d *fakeDriver) InsertReference(ref model.Reference) error {
	d.record("ref %v", ref["id"])
	d.refs[ref["id"].(string)] = ref
	return nil
}

func (d *fakeDriver) InsertCluster(cluster model.Cluster) error {
	d.record("cluster %s", cluster.ID)
	d.clusters = append(d.clusters, cluster)
	return nil
}

func (d *fakeDriver) PreviewCluster(cluster model.Cluster, order []model.ClusterPosition, format string) (string, error) {
	d.record("preview %s", cluster.ID)
	d.previewOrder = order
	d.previewFormat = format
	return "preview:" + cluster.ID, nil
}

func (d *fakeDriver) SetClusterOrder(order []model.ClusterPosition) error {
	d.record("order %d", len(order))
	d.order = order
	return nil
}

func (d *fakeDriver) BatchedUpdates() ([]model.ClusterUpdate, error) {
	d.record("updates")
	return d.updates, nil
}

func (d *fakeDriver) IncludeUncited(uncited model.IncludeUncited) error {
	d.record("uncited %v", uncited.Specific)
	d.uncited = &uncited
	return nil
}

func (d *fakeDriver) BibliographyMeta() (model.EngineBibliographyMeta, error) {
	return d.meta, nil
}

func (d *fakeDriver) MakeBibliography() ([]model.BibEntry, error) {
	return d.entries, nil
}

// fakeFactory creates fakeDrivers and remembers them
type fakeFactory struct {
	log     []string
	drivers []*fakeDriver
	opts    []engine.Options
	err     error

	// configure is applied to every new driver
	configure func(d *fakeDriver)
}

func (f *fakeFactory) New(ctx context.Context, opts engine.Options) (engine.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := &fakeDriver{
		id:     len(f.drivers) + 1,
		log:    &f.log,
		format: opts.Format,
		refs:   make(map[string]model.Reference),
	}
	if f.configure != nil {
		f.configure(d)
	}
	f.log = append(f.log, fmt.Sprintf("new d%d", d.id))
	f.drivers = append(f.drivers, d)
	f.opts = append(f.opts, opts)
	return d, nil
}

func (f *fakeFactory) last() *fakeDriver {
	return f.drivers[len(f.drivers)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func book(id any, family string, year int, title string) model.Reference {
	return model.Reference{
		"id":    id,
		"type":  "book",
		"title": title,
		"author": []any{
			map[string]any{"family": family, "given": "Jane"},
		},
		"issued": map[string]any{
			"date-parts": []any{[]any{year}},
		},
	}
}

func newTestSession(factory *fakeFactory, items *fakeItems, cfg Config) (*Session, error) {
	if cfg.StyleXML == "" {
		cfg.StyleXML = testStyle
	}
	if cfg.Format == "" {
		cfg.Format = "html"
	}
	return NewSession(context.Background(), factory.New,
		System{Items: items, Locales: &fakeLocales{}},
		cfg, WithLogger(quietLogger()))
}
