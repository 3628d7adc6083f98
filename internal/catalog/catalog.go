// Package catalog loads the labels and place names of a map template.
//
// A catalog file looks like:
//
//	<mapTemplate name="Jerusalem">
//	  <label mergeKey="jerusalem" template="{jerusalem}"/>
//	  <placeName id="jerusalem">
//	    <term id="H3389" refs="JOS010001 2SA005006"/>
//	  </placeName>
//	</mapTemplate>
//
// A label without a template attribute uses the place name of the same ID.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/ref"
	"github.com/FocuswithJustin/MapLabeler/core/template"
)

var (
	rootExpr      = xpath.MustCompile("/mapTemplate")
	labelExpr     = xpath.MustCompile("label")
	placeNameExpr = xpath.MustCompile("placeName")
	termExpr      = xpath.MustCompile("term")
)

// Label is one text element on the map.
type Label struct {
	MergeKey string `json:"merge_key"`
	Template string `json:"template"`
	// Gloss is an optional English description.
	Gloss string `json:"gloss,omitempty"`
}

// Term is a biblical term denoting a place, with the verses it occurs in.
type Term struct {
	ID   string   `json:"id"`
	Refs []string `json:"refs"`
}

// PlaceName groups the terms that name one place.
type PlaceName struct {
	ID    string `json:"id"`
	Terms []Term `json:"terms"`
}

// Catalog is a loaded map template.
type Catalog struct {
	Name string

	labels     []Label
	labelIndex map[string]int
	places     map[string]*PlaceName
	placeOrder []string
	termRefs   map[string][]string
}

// LoadFile loads the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		var pe *apperrors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return c, nil
}

// Load reads a catalog document.
func Load(r io.Reader) (*Catalog, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, parseErr(err.Error(), err)
	}
	root := xmlquery.QuerySelector(doc, rootExpr)
	if root == nil {
		return nil, parseErr("missing <mapTemplate> root element", nil)
	}

	c := &Catalog{
		Name:       root.SelectAttr("name"),
		labelIndex: make(map[string]int),
		places:     make(map[string]*PlaceName),
		termRefs:   make(map[string][]string),
	}

	for _, n := range xmlquery.QuerySelectorAll(root, placeNameExpr) {
		if err := c.addPlaceName(n); err != nil {
			return nil, err
		}
	}
	for _, n := range xmlquery.QuerySelectorAll(root, labelExpr) {
		if err := c.addLabel(n); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) addPlaceName(n *xmlquery.Node) error {
	id := strings.TrimSpace(n.SelectAttr("id"))
	if id == "" {
		return parseErr("placeName without id", nil)
	}
	if _, dup := c.places[id]; dup {
		return parseErr(fmt.Sprintf("duplicate placeName %q", id), apperrors.ErrAlreadyExists)
	}

	pn := &PlaceName{ID: id}
	for _, tn := range xmlquery.QuerySelectorAll(n, termExpr) {
		termID := strings.TrimSpace(tn.SelectAttr("id"))
		if termID == "" {
			return parseErr(fmt.Sprintf("term without id in placeName %q", id), nil)
		}
		refs := make([]string, 0)
		for _, r := range strings.Fields(tn.SelectAttr("refs")) {
			refs = append(refs, ref.Canonical(r))
		}
		pn.Terms = append(pn.Terms, Term{ID: termID, Refs: refs})
		c.termRefs[termID] = appendUnique(c.termRefs[termID], refs...)
	}

	c.places[id] = pn
	c.placeOrder = append(c.placeOrder, id)
	return nil
}

func (c *Catalog) addLabel(n *xmlquery.Node) error {
	key := strings.TrimSpace(n.SelectAttr("mergeKey"))
	if key == "" {
		return parseErr("label without mergeKey", nil)
	}
	if _, dup := c.labelIndex[key]; dup {
		return parseErr(fmt.Sprintf("duplicate label %q", key), apperrors.ErrAlreadyExists)
	}

	tpl := n.SelectAttr("template")
	if tpl == "" {
		tpl = "{" + key + "}"
	}
	if _, err := template.Parse(tpl); err != nil {
		return parseErr(fmt.Sprintf("label %q: %v", key, err), err)
	}

	c.labelIndex[key] = len(c.labels)
	c.labels = append(c.labels, Label{
		MergeKey: key,
		Template: tpl,
		Gloss:    n.SelectAttr("gloss"),
	})
	return nil
}

// Labels returns the labels in document order.
func (c *Catalog) Labels() []Label {
	out := make([]Label, len(c.labels))
	copy(out, c.labels)
	return out
}

// Label returns the label with the given merge key.
func (c *Catalog) Label(mergeKey string) (Label, error) {
	i, ok := c.labelIndex[mergeKey]
	if !ok {
		return Label{}, apperrors.NewNotFound("label", mergeKey)
	}
	return c.labels[i], nil
}

// PlaceNames returns the place name IDs in document order.
func (c *Catalog) PlaceNames() []string {
	out := make([]string, len(c.placeOrder))
	copy(out, c.placeOrder)
	return out
}

// PlaceName returns a place name by ID.
func (c *Catalog) PlaceName(id string) (*PlaceName, bool) {
	pn, ok := c.places[id]
	return pn, ok
}

// TermsForPlaceName returns the term IDs of a place name in document order.
// It implements template.Catalog.
func (c *Catalog) TermsForPlaceName(id string) []string {
	pn, ok := c.places[id]
	if !ok {
		return nil
	}
	out := make([]string, len(pn.Terms))
	for i, t := range pn.Terms {
		out[i] = t.ID
	}
	return out
}

// RefsForPlaceName returns the distinct references of all terms of a place
// name, in first-seen order.
func (c *Catalog) RefsForPlaceName(id string) []string {
	pn, ok := c.places[id]
	if !ok {
		return nil
	}
	var out []string
	for _, t := range pn.Terms {
		out = appendUnique(out, t.Refs...)
	}
	return out
}

// RefsForTerm returns the references of a term across all place names.
func (c *Catalog) RefsForTerm(termID string) []string {
	refs := c.termRefs[termID]
	out := make([]string, len(refs))
	copy(out, refs)
	return out
}

// TermIDs returns every term ID in first-seen order.
func (c *Catalog) TermIDs() []string {
	var out []string
	for _, id := range c.placeOrder {
		out = appendUnique(out, c.TermsForPlaceName(id)...)
	}
	return out
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, have := range dst {
			if have == item {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, item)
		}
	}
	return dst
}

func parseErr(msg string, err error) error {
	return &apperrors.ParseError{Document: "catalog", Message: msg, Err: err}
}
