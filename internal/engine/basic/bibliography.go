package basic

import (
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/ppiankov/cslbridge/internal/model"
)

// BibliographyMeta returns formatting metadata for the current output format
func (d *Driver) BibliographyMeta() (model.EngineBibliographyMeta, error) {
	if d.freed {
		return model.EngineBibliographyMeta{}, ErrFreed
	}

	meta := model.EngineBibliographyMeta{
		MaxOffset:        0,
		LineSpacing:      1,
		EntrySpacing:     1,
		HangingIndent:    true,
		SecondFieldAlign: false,
	}
	if d.format == "html" {
		meta.FormatMeta = &model.FormatMeta{
			MarkupPre:  `<div class="csl-bib-body">`,
			MarkupPost: `</div>`,
		}
	}
	return meta, nil
}

// MakeBibliography renders every cited reference plus the specific uncited
// set, sorted by author, year and title
func (d *Driver) MakeBibliography() ([]model.BibEntry, error) {
	if d.freed {
		return nil, ErrFreed
	}

	r := d.renderer(d.format)
	ids := d.bibliographyIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return bibSortKey(d.refs[ids[i]]) < bibSortKey(d.refs[ids[j]])
	})

	entries := make([]model.BibEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, model.BibEntry{ID: id, Value: r.entry(d.refs[id])})
	}
	return entries, nil
}

// bibliographyIDs returns references cited in ordered clusters, then the
// uncited set, without duplicates. Unknown references are skipped.
func (d *Driver) bibliographyIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if seen[id] {
			return
		}
		if _, ok := d.refs[id]; !ok {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, pos := range d.order {
		c, ok := d.clusters[pos.ID]
		if !ok {
			continue
		}
		for _, cite := range c.Cites {
			add(cite.ID)
		}
	}
	for _, id := range d.uncited {
		add(id)
	}
	return ids
}

func bibSortKey(ref model.Reference) string {
	return strings.ToLower(shortAuthor(ref)) + "\x00" + year(ref) + "\x00" + strings.ToLower(cast.ToString(ref["title"]))
}

// entry renders "Family, G., & Other, O. (Year). Title. Container."
func (r *renderer) entry(ref model.Reference) string {
	var b strings.Builder

	if authors := fullAuthors(ref); authors != "" {
		b.WriteString(r.text(authors))
		b.WriteString(" ")
	}
	b.WriteString("(" + year(ref) + ").")

	if t := cast.ToString(ref["title"]); t != "" {
		b.WriteString(" ")
		b.WriteString(r.text(strings.TrimSuffix(t, ".")))
		b.WriteString(".")
	}
	if container := cast.ToString(ref["container-title"]); container != "" {
		b.WriteString(" ")
		b.WriteString(r.text(strings.TrimSuffix(container, ".")))
		b.WriteString(".")
	}
	return b.String()
}

func fullAuthors(ref model.Reference) string {
	names := cast.ToSlice(ref["author"])
	if len(names) == 0 {
		return ""
	}

	formatted := make([]string, 0, len(names))
	for _, n := range names {
		name := toMap(n)
		family := cast.ToString(name["family"])
		if family == "" {
			if literal := cast.ToString(name["literal"]); literal != "" {
				formatted = append(formatted, literal)
			}
			continue
		}
		if given := initials(cast.ToString(name["given"])); given != "" {
			family += ", " + given
		}
		formatted = append(formatted, family)
	}

	switch len(formatted) {
	case 0:
		return ""
	case 1:
		return formatted[0]
	default:
		return strings.Join(formatted[:len(formatted)-1], ", ") + ", & " + formatted[len(formatted)-1]
	}
}

// initials turns "Jane Ann" into "J. A."
func initials(given string) string {
	fields := strings.Fields(given)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		r := []rune(f)
		out = append(out, string(r[0])+".")
	}
	return strings.Join(out, " ")
}
