package model

// BibEntry is one formatted bibliography entry returned by an engine
type BibEntry struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// FormatMeta carries the wrapping markup an engine uses around the whole bibliography
type FormatMeta struct {
	MarkupPre  string `json:"markupPre"`
	MarkupPost string `json:"markupPost"`
}

// EngineBibliographyMeta is the bibliography metadata in engine naming
type EngineBibliographyMeta struct {
	MaxOffset     int  `json:"maxOffset"`
	LineSpacing   int  `json:"lineSpacing"`
	EntrySpacing  int  `json:"entrySpacing"`
	HangingIndent bool `json:"hangingIndent"`

	// SecondFieldAlign is false, "flush" or "margin"
	SecondFieldAlign any         `json:"secondFieldAlign"`
	FormatMeta       *FormatMeta `json:"formatMeta,omitempty"`
}

// Fields returns the metadata keyed by engine field names
func (m EngineBibliographyMeta) Fields() map[string]any {
	fields := map[string]any{
		"maxOffset":        m.MaxOffset,
		"lineSpacing":      m.LineSpacing,
		"entrySpacing":     m.EntrySpacing,
		"hangingIndent":    m.HangingIndent,
		"secondFieldAlign": m.SecondFieldAlign,
	}
	if m.FormatMeta != nil {
		fields["formatMeta"] = map[string]any{
			"markupPre":  m.FormatMeta.MarkupPre,
			"markupPost": m.FormatMeta.MarkupPost,
		}
	}
	return fields
}

// BibliographyMeta is the legacy consumer-facing bibliography metadata.
// It holds both the engine field names and their legacy equivalents
// (maxoffset, linespacing, entryspacing, hangingindent, second-field-align,
// bibstart, bibend) plus entry_ids.
type BibliographyMeta map[string]any

// EntryIDs returns the entry_ids value ([][]string, one single-element slice per entry)
func (m BibliographyMeta) EntryIDs() [][]string {
	ids, _ := m["entry_ids"].([][]string)
	return ids
}

// IncludeUncited restricts which uncited references the engine puts in the bibliography
type IncludeUncited struct {
	Specific []string `json:"Specific"`
}
