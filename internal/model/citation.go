package model

// Reference is a CSL-JSON bibliographic record (author, title, issued ...).
// Its contents are opaque to the bridge except for the "id" field.
type Reference map[string]any

// ID returns the reference identifier as stored (may be non-string before normalization)
func (r Reference) ID() any {
	if r == nil {
		return nil
	}
	return r["id"]
}

// Clone returns a shallow copy of the reference
func (r Reference) Clone() Reference {
	if r == nil {
		return nil
	}
	out := make(Reference, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ItemID is an opaque item-store key. Stores may use numeric or string keys.
type ItemID = any

// CitationItem is one cited item inside an application-level citation
type CitationItem struct {
	ID             ItemID `json:"id" yaml:"id"`
	Locator        string `json:"locator,omitempty" yaml:"locator,omitempty"`
	Label          string `json:"label,omitempty" yaml:"label,omitempty"`
	Prefix         string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix         string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	SuppressAuthor bool   `json:"suppress-author,omitempty" yaml:"suppress-author,omitempty"`
	AuthorOnly     bool   `json:"author-only,omitempty" yaml:"author-only,omitempty"`
}

// Citation is an application-level citation request: the cited items plus
// where the citation sits in the document.
type Citation struct {
	// ID is the stable citation (cluster) identifier. Empty means "generate one".
	ID    string         `json:"citationID,omitempty" yaml:"id,omitempty"`
	Items []CitationItem `json:"citationItems" yaml:"items"`

	// NoteIndex is the footnote/endnote number, as a string or integer.
	// Zero, empty or nil means the citation is in-text.
	NoteIndex any `json:"noteIndex,omitempty" yaml:"noteIndex,omitempty"`
}

// CiteMode is the display mode of a single cite
type CiteMode string

const (
	CiteModeDefault        CiteMode = ""
	CiteModeSuppressAuthor CiteMode = "SuppressAuthor"
	CiteModeAuthorOnly     CiteMode = "AuthorOnly"
)

// Cite is the engine-facing form of a CitationItem
type Cite struct {
	ID      string   `json:"id"`
	Mode    CiteMode `json:"mode,omitempty"`
	Locator string   `json:"locator,omitempty"`
	Label   string   `json:"label,omitempty"`
	Prefix  string   `json:"prefix,omitempty"`
	Suffix  string   `json:"suffix,omitempty"`
}

// Cluster is one in-text citation group as the engine sees it.
// Note is zero for in-text (unnumbered) clusters.
type Cluster struct {
	ID    string `json:"id"`
	Cites []Cite `json:"cites"`
	Note  int    `json:"note,omitempty"`
}

// ClusterPosition is the position of one cluster in the whole-document order
type ClusterPosition struct {
	ID   string `json:"id"`
	Note int    `json:"note,omitempty"`
}

// CitationPosition is a (citation id, note index) pair as supplied by the
// application, before note index normalization.
type CitationPosition struct {
	CitationID string `json:"citationID" yaml:"citationID"`
	NoteIndex  any    `json:"noteIndex,omitempty" yaml:"noteIndex,omitempty"`
}

// Position returns the unnormalized position of the citation
func (c Citation) Position() CitationPosition {
	return CitationPosition{CitationID: c.ID, NoteIndex: c.NoteIndex}
}

// ClusterUpdate reports the new rendered text of one cluster
type ClusterUpdate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
