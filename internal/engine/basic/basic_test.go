package basic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/cslbridge/internal/engine"
	"github.com/ppiankov/cslbridge/internal/model"
)

const style = `<?xml version="1.0" encoding="utf-8"?>
<style xmlns="http://purl.org/net/xbiblio/csl" version="1.0" default-locale="fr-FR"><info/></style>`

func newDriver(t *testing.T, format string) *Driver {
	t.Helper()
	d, err := New(context.Background(), engine.Options{Style: style, Format: format, SortCitations: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func ref(id, family string, year int, title string) model.Reference {
	return model.Reference{
		"id":     id,
		"title":  title,
		"author": []any{map[string]any{"family": family, "given": "Ann Marie"}},
		"issued": map[string]any{"date-parts": []any{[]any{year}}},
	}
}

func mustInsert(t *testing.T, d *Driver, refs ...model.Reference) {
	t.Helper()
	for _, r := range refs {
		if err := d.InsertReference(r); err != nil {
			t.Fatalf("InsertReference: %v", err)
		}
	}
}

func TestNew_LocaleSelection(t *testing.T) {
	var fetched []string
	fetcher := engine.LocaleFetcherFunc(func(ctx context.Context, lang string) (string, error) {
		fetched = append(fetched, lang)
		return "<locale/>", nil
	})

	d, err := New(context.Background(), engine.Options{Style: style, Format: "html", Fetcher: fetcher})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Locale() != "fr-FR" {
		t.Errorf("expected style default locale fr-FR, got %s", d.Locale())
	}

	d, err = New(context.Background(), engine.Options{Style: style, Format: "html", Fetcher: fetcher, LocaleOverride: "de-AT"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Locale() != "de-AT" {
		t.Errorf("expected override de-AT, got %s", d.Locale())
	}

	if strings.Join(fetched, ",") != "fr-FR,de-AT" {
		t.Errorf("unexpected fetches %v", fetched)
	}
}

func TestNew_Errors(t *testing.T) {
	offline := errors.New("offline")
	failing := engine.LocaleFetcherFunc(func(ctx context.Context, lang string) (string, error) {
		return "", offline
	})

	if _, err := New(context.Background(), engine.Options{Style: style, Format: "html", Fetcher: failing}); !errors.Is(err, offline) {
		t.Errorf("expected locale error, got %v", err)
	}
	if _, err := New(context.Background(), engine.Options{Style: "", Format: "html"}); err == nil {
		t.Error("expected error for empty style")
	}
	if _, err := New(context.Background(), engine.Options{Style: "<style", Format: "html"}); err == nil {
		t.Error("expected error for malformed style")
	}
	if _, err := New(context.Background(), engine.Options{Style: style, Format: "docx"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestBatchedUpdates_ReportsOnlyChanges(t *testing.T) {
	d := newDriver(t, "plain")
	mustInsert(t, d, ref("a", "Doe", 2001, "Alpha"), ref("b", "Roe", 1999, "Beta"))

	_ = d.InsertCluster(model.Cluster{ID: "c1", Cites: []model.Cite{{ID: "a"}}})
	_ = d.InsertCluster(model.Cluster{ID: "c2", Cites: []model.Cite{{ID: "b", Locator: "4"}}})
	_ = d.SetClusterOrder([]model.ClusterPosition{{ID: "c1"}, {ID: "c2"}})

	updates, err := d.BatchedUpdates()
	if err != nil {
		t.Fatalf("BatchedUpdates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %v", updates)
	}
	if updates[0].Text != "(Doe, 2001)" {
		t.Errorf("unexpected text %q", updates[0].Text)
	}
	if updates[1].Text != "(Roe, 1999, p. 4)" {
		t.Errorf("unexpected text %q", updates[1].Text)
	}

	_ = d.InsertCluster(model.Cluster{ID: "c2", Cites: []model.Cite{{ID: "b", Mode: model.CiteModeSuppressAuthor}}})
	updates, _ = d.BatchedUpdates()
	if len(updates) != 1 || updates[0].ID != "c2" || updates[0].Text != "(1999)" {
		t.Errorf("expected only c2 updated to (1999), got %v", updates)
	}

	updates, _ = d.BatchedUpdates()
	if len(updates) != 0 {
		t.Errorf("expected no updates, got %v", updates)
	}
}

func TestRender_ModesAndSorting(t *testing.T) {
	d := newDriver(t, "html")
	mustInsert(t, d,
		ref("z", "Zed", 2010, "Zeta"),
		ref("a", "Abel", 2000, "Alpha & Omega"),
		model.Reference{"id": "t", "title": "<i>Anonymous</i> Work", "issued": map[string]any{"raw": "1850"}},
	)

	_ = d.InsertCluster(model.Cluster{ID: "multi", Cites: []model.Cite{{ID: "z"}, {ID: "a", Prefix: "see "}}})
	_ = d.InsertCluster(model.Cluster{ID: "only", Cites: []model.Cite{{ID: "a", Mode: model.CiteModeAuthorOnly}}})
	_ = d.InsertCluster(model.Cluster{ID: "anon", Cites: []model.Cite{{ID: "t"}}})
	_ = d.SetClusterOrder([]model.ClusterPosition{{ID: "multi"}, {ID: "only"}, {ID: "anon"}})

	updates, _ := d.BatchedUpdates()
	got := map[string]string{}
	for _, u := range updates {
		got[u.ID] = u.Text
	}

	if got["multi"] != "(see Abel, 2000; Zed, 2010)" {
		t.Errorf("expected sorted cites, got %q", got["multi"])
	}
	if got["only"] != "Abel" {
		t.Errorf("expected bare author, got %q", got["only"])
	}
	if got["anon"] != "(Anonymous Work, 1850)" {
		t.Errorf("expected title fallback with markup stripped, got %q", got["anon"])
	}
}

func TestRender_IbidForAdjacentNotes(t *testing.T) {
	d := newDriver(t, "plain")
	mustInsert(t, d, ref("a", "Doe", 2001, "Alpha"))

	_ = d.InsertCluster(model.Cluster{ID: "n1", Cites: []model.Cite{{ID: "a"}}})
	_ = d.InsertCluster(model.Cluster{ID: "n2", Cites: []model.Cite{{ID: "a", Locator: "7"}}})
	_ = d.SetClusterOrder([]model.ClusterPosition{{ID: "n1", Note: 1}, {ID: "n2", Note: 2}})

	updates, _ := d.BatchedUpdates()
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %v", updates)
	}
	if updates[0].Text != "Doe, 2001." {
		t.Errorf("unexpected first note %q", updates[0].Text)
	}
	if updates[1].Text != "Ibid, p. 7." {
		t.Errorf("expected ibid, got %q", updates[1].Text)
	}
}

func TestPreviewCluster_DoesNotCommit(t *testing.T) {
	d := newDriver(t, "plain")
	mustInsert(t, d, ref("a", "Doe", 2001, "Alpha"))
	_ = d.InsertCluster(model.Cluster{ID: "n1", Cites: []model.Cite{{ID: "a"}}})
	_ = d.SetClusterOrder([]model.ClusterPosition{{ID: "n1", Note: 1}})
	_, _ = d.BatchedUpdates()

	preview := model.Cluster{ID: "p", Cites: []model.Cite{{ID: "a"}}, Note: 2}
	text, err := d.PreviewCluster(preview, []model.ClusterPosition{{ID: "n1", Note: 1}, {ID: "p", Note: 2}}, "html")
	if err != nil {
		t.Fatalf("PreviewCluster: %v", err)
	}
	if text != "Ibid." {
		t.Errorf("expected Ibid., got %q", text)
	}

	if _, ok := d.clusters["p"]; ok {
		t.Error("preview stored the cluster")
	}
	if updates, _ := d.BatchedUpdates(); len(updates) != 0 {
		t.Errorf("preview changed committed output: %v", updates)
	}

	if _, err := d.PreviewCluster(preview, []model.ClusterPosition{{ID: "n1"}}, "html"); err == nil {
		t.Error("expected error when cluster is missing from order")
	}
}

func TestBibliography(t *testing.T) {
	d := newDriver(t, "html")
	mustInsert(t, d,
		ref("b", "Roe", 1999, "Beta"),
		ref("a", "O'Neil", 2001, "Alpha"),
		ref("u", "Abbot", 2005, "Uncited"),
		ref("x", "Xu", 2005, "Never"),
	)
	_ = d.InsertCluster(model.Cluster{ID: "c1", Cites: []model.Cite{{ID: "b"}, {ID: "a"}}})
	_ = d.SetClusterOrder([]model.ClusterPosition{{ID: "c1"}})
	_ = d.IncludeUncited(model.IncludeUncited{Specific: []string{"u", "missing"}})

	entries, err := d.MakeBibliography()
	if err != nil {
		t.Fatalf("MakeBibliography: %v", err)
	}
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "u,a,b" {
		t.Errorf("expected u,a,b got %v", ids)
	}
	if entries[1].Value != "O&#39;Neil, A. M. (2001). Alpha." {
		t.Errorf("unexpected entry %q", entries[1].Value)
	}

	meta, _ := d.BibliographyMeta()
	if meta.FormatMeta == nil || meta.FormatMeta.MarkupPre != `<div class="csl-bib-body">` {
		t.Errorf("expected html formatMeta, got %+v", meta.FormatMeta)
	}

	_ = d.SetOutputFormat("plain")
	meta, _ = d.BibliographyMeta()
	if meta.FormatMeta != nil {
		t.Errorf("expected no formatMeta for plain, got %+v", meta.FormatMeta)
	}
	entries, _ = d.MakeBibliography()
	if entries[1].Value != "O'Neil, A. M. (2001). Alpha." {
		t.Errorf("unexpected plain entry %q", entries[1].Value)
	}
}

func TestRender_NestedReferenceMaps(t *testing.T) {
	d := newDriver(t, "plain")
	mustInsert(t, d, model.Reference{
		"id":     "roe",
		"title":  "Beta",
		"author": []any{model.Reference{"family": "Roe", "given": "Richard"}},
		"issued": model.Reference{"date-parts": []any{[]any{1999}}},
	})
	_ = d.InsertCluster(model.Cluster{ID: "c1", Cites: []model.Cite{{ID: "roe"}}})
	_ = d.SetClusterOrder([]model.ClusterPosition{{ID: "c1"}})

	updates, _ := d.BatchedUpdates()
	if len(updates) != 1 || updates[0].Text != "(Roe, 1999)" {
		t.Errorf("expected (Roe, 1999), got %v", updates)
	}
	entries, _ := d.MakeBibliography()
	if len(entries) != 1 || entries[0].Value != "Roe, R. (1999). Beta." {
		t.Errorf("unexpected entries %v", entries)
	}
}

func TestFree(t *testing.T) {
	d := newDriver(t, "html")
	if err := d.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := d.Free(); !errors.Is(err, ErrFreed) {
		t.Errorf("expected ErrFreed on double free, got %v", err)
	}
	if _, err := d.BatchedUpdates(); !errors.Is(err, ErrFreed) {
		t.Errorf("expected ErrFreed after free, got %v", err)
	}
}
