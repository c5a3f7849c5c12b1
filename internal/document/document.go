// Package document defines the YAML document format rendered by the CLI and
// the pipeline that turns one document into clusters and a bibliography.
package document

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/cslbridge/internal/items"
	"github.com/ppiankov/cslbridge/internal/model"
)

// Document is a citing document: a style, its items and its citations in document order
type Document struct {
	Title string `yaml:"title,omitempty"`

	// Style is the path to the CSL style file, relative to the document
	Style          string `yaml:"style"`
	Locale         string `yaml:"locale,omitempty"`
	OverrideLocale bool   `yaml:"override_locale,omitempty"`
	Format         string `yaml:"format,omitempty"`

	// ItemsFile is a CSL-JSON or YAML item list, relative to the document.
	// Inline Items are added after it and win on id clashes.
	ItemsFile string           `yaml:"items_file,omitempty"`
	Items     []map[string]any `yaml:"items,omitempty"`

	Citations []model.Citation `yaml:"citations"`
	Uncited   []model.ItemID   `yaml:"uncited,omitempty"`
	Previews  []Preview        `yaml:"previews,omitempty"`

	dir string
}

// Preview asks for a citation to be rendered as if inserted after the
// citation with id After ("" means at the start) without committing it
type Preview struct {
	Citation model.Citation `yaml:"citation"`
	After    string         `yaml:"after,omitempty"`
	Format   string         `yaml:"format,omitempty"`
}

// Load reads and validates a document file
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.dir = filepath.Dir(path)
	return doc, nil
}

// Parse decodes and validates a document. Relative paths resolve against the working directory.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document is renderable
func (d *Document) Validate() error {
	if d.Style == "" {
		return fmt.Errorf("document has no style")
	}

	seen := make(map[string]bool, len(d.Citations))
	for i, c := range d.Citations {
		if len(c.Items) == 0 {
			return fmt.Errorf("citation %d has no items", i)
		}
		if c.ID == "" {
			continue
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate citation id %q", c.ID)
		}
		seen[c.ID] = true
	}

	for i, p := range d.Previews {
		if len(p.Citation.Items) == 0 {
			return fmt.Errorf("preview %d has no items", i)
		}
		if p.After != "" && !seen[p.After] {
			return fmt.Errorf("preview %d: unknown citation %q", i, p.After)
		}
	}
	return nil
}

// Resolve returns path relative to the document's directory
func (d *Document) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || d.dir == "" {
		return path
	}
	return filepath.Join(d.dir, path)
}

// StyleXML reads the style file
func (d *Document) StyleXML() (string, error) {
	data, err := os.ReadFile(d.Resolve(d.Style))
	if err != nil {
		return "", fmt.Errorf("read style: %w", err)
	}
	return string(data), nil
}

// Library builds the item store for the document
func (d *Document) Library() (*items.Library, error) {
	lib, err := items.NewLibrary()
	if err != nil {
		return nil, err
	}

	if d.ItemsFile != "" {
		lib, err = items.LoadFile(d.Resolve(d.ItemsFile))
		if err != nil {
			return nil, err
		}
	}

	for _, ref := range d.Items {
		if err := lib.Add(model.Reference(ref)); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// split returns the positions before and after the citation with id after
func (d *Document) split(after string) (before, rest []model.CitationPosition) {
	positions := make([]model.CitationPosition, 0, len(d.Citations))
	cut := 0
	for i, c := range d.Citations {
		positions = append(positions, c.Position())
		if after != "" && c.ID == after {
			cut = i + 1
		}
	}
	return positions[:cut], positions[cut:]
}
