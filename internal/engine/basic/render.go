package basic

import (
	"sort"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/net/html"

	"github.com/ppiankov/cslbridge/internal/model"
)

var locatorLabels = map[string]string{
	"":        "p.",
	"page":    "p.",
	"chapter": "chap.",
	"section": "sec.",
	"figure":  "fig.",
	"volume":  "vol.",
	"line":    "l.",
	"note":    "n.",
}

type renderer struct {
	format        string
	refs          map[string]model.Reference
	sortCitations bool
}

// cluster renders a cluster. prev is the cluster immediately before it in
// document order, or nil.
func (r *renderer) cluster(c model.Cluster, prev *model.Cluster) string {
	if c.Note != 0 && isIbid(c, prev) {
		cite := c.Cites[0]
		return r.text(cite.Prefix) + "Ibid" + r.locator(cite) + r.text(cite.Suffix) + "."
	}

	cites := c.Cites
	if r.sortCitations && c.Note == 0 && len(cites) > 1 {
		cites = append([]model.Cite(nil), cites...)
		sort.SliceStable(cites, func(i, j int) bool {
			return r.sortKey(cites[i].ID) < r.sortKey(cites[j].ID)
		})
	}

	parts := make([]string, 0, len(cites))
	for _, cite := range cites {
		parts = append(parts, r.cite(cite))
	}
	body := strings.Join(parts, "; ")

	if c.Note != 0 {
		return body + "."
	}
	if len(cites) == 1 && cites[0].Mode == model.CiteModeAuthorOnly {
		return body
	}
	return "(" + body + ")"
}

func isIbid(c model.Cluster, prev *model.Cluster) bool {
	if prev == nil || prev.Note == 0 {
		return false
	}
	if len(c.Cites) != 1 || len(prev.Cites) != 1 {
		return false
	}
	return c.Cites[0].ID == prev.Cites[0].ID && c.Cites[0].Mode == model.CiteModeDefault
}

func (r *renderer) cite(cite model.Cite) string {
	ref, ok := r.refs[cite.ID]
	if !ok {
		return "???"
	}

	var body string
	switch cite.Mode {
	case model.CiteModeSuppressAuthor:
		body = year(ref)
	case model.CiteModeAuthorOnly:
		body = r.text(shortAuthor(ref))
	default:
		body = r.text(shortAuthor(ref)) + ", " + year(ref)
	}

	return r.text(cite.Prefix) + body + r.locator(cite) + r.text(cite.Suffix)
}

func (r *renderer) locator(cite model.Cite) string {
	if cite.Locator == "" {
		return ""
	}
	label, ok := locatorLabels[cite.Label]
	if !ok {
		label = cite.Label
	}
	return ", " + r.text(label+" "+cite.Locator)
}

// text strips markup from a field and escapes it for the output format
func (r *renderer) text(s string) string {
	if s == "" {
		return ""
	}
	plain := stripMarkup(s)
	if r.format == "html" {
		return html.EscapeString(plain)
	}
	return plain
}

func (r *renderer) sortKey(id string) string {
	ref, ok := r.refs[id]
	if !ok {
		return "\uffff" + id
	}
	return strings.ToLower(shortAuthor(ref)) + "\x00" + year(ref)
}

// stripMarkup returns the text content of an HTML fragment
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var buf strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.TextToken:
			buf.Write(z.Text())
		}
	}
}

// familyNames returns the family (or literal) names of the authors, falling
// back to editors
func familyNames(ref model.Reference) []string {
	for _, field := range []string{"author", "editor"} {
		names := cast.ToSlice(ref[field])
		if len(names) == 0 {
			continue
		}
		out := make([]string, 0, len(names))
		for _, n := range names {
			name := toMap(n)
			if family := cast.ToString(name["family"]); family != "" {
				out = append(out, family)
			} else if literal := cast.ToString(name["literal"]); literal != "" {
				out = append(out, literal)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func shortAuthor(ref model.Reference) string {
	names := familyNames(ref)
	switch len(names) {
	case 0:
		return title(ref)
	case 1:
		return names[0]
	case 2:
		return names[0] + " & " + names[1]
	default:
		return names[0] + " et al."
	}
}

func title(ref model.Reference) string {
	if t := cast.ToString(ref["title-short"]); t != "" {
		return t
	}
	return cast.ToString(ref["title"])
}

// toMap reads a nested CSL object such as a name or a date
func toMap(v any) map[string]any {
	switch m := v.(type) {
	case model.Reference:
		return m
	case map[string]any:
		return m
	default:
		return cast.ToStringMap(v)
	}
}

// year returns the first issued year, or "n.d."
func year(ref model.Reference) string {
	issued := toMap(ref["issued"])
	if parts := cast.ToSlice(issued["date-parts"]); len(parts) > 0 {
		if first := cast.ToSlice(parts[0]); len(first) > 0 {
			if y := cast.ToString(first[0]); y != "" {
				return y
			}
		}
	}
	if raw := cast.ToString(issued["raw"]); raw != "" {
		return raw
	}
	if literal := cast.ToString(issued["literal"]); literal != "" {
		return literal
	}
	return "n.d."
}
