// Package catalog provides the read-only product catalog that every
// recommendation is validated against.
//
// A Catalog is built once at startup and shared by all requests. All methods
// are safe for concurrent use because nothing is mutated after New returns.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var embeddedProducts []byte

var (
	ErrEmptyCatalog = errors.New("catalog has no products")
	ErrMissingID    = errors.New("catalog product has an empty id")
	ErrDuplicateID  = errors.New("catalog product id is duplicated")
	ErrUnknownID    = errors.New("unknown product id")
)

// Catalog is an immutable, ordered product index
type Catalog struct {
	products  []Product
	byID      map[string]int
	summaries map[View]string
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

// New builds a catalog from products, preserving their order
func New(products []Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}

	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, ErrMissingID
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p.clone())
	}

	c.summaries = map[View]string{
		ViewFull:   c.render(ViewFull),
		ViewRecipe: c.render(ViewRecipe),
	}

	return c, nil
}

// Load decodes a YAML catalog document
func Load(r io.Reader) (*Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(file.Products)
}

// LoadFile loads a catalog from a YAML file on disk
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()

	return Load(f)
}

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	return Load(strings.NewReader(string(embeddedProducts)))
}

// ValidIDs returns the set of product identifiers. The returned map is a copy.
func (c *Catalog) ValidIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(c.byID))
	for id := range c.byID {
		ids[id] = struct{}{}
	}
	return ids
}

// Contains reports whether id (already trimmed) is a catalog identifier
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Lookup returns a copy of the product with the given id
func (c *Catalog) Lookup(id string) (Product, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[idx].clone(), true
}

// Products returns copies of all products in catalog order
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	for i, p := range c.products {
		out[i] = p.clone()
	}
	return out
}

// Len returns the number of products
func (c *Catalog) Len() int {
	return len(c.products)
}

// Subset returns a catalog holding only the given ids, in catalog order.
// An empty ids list returns c itself.
func (c *Catalog) Subset(ids []string) (*Catalog, error) {
	if len(ids) == 0 {
		return c, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !c.Contains(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownID, id)
		}
		want[id] = true
	}

	products := make([]Product, 0, len(want))
	for _, p := range c.products {
		if want[p.ID] {
			products = append(products, p)
		}
	}
	return New(products)
}

// Summarize returns the prompt text block for the given view.
// Unknown views fall back to the full view.
func (c *Catalog) Summarize(view View) string {
	if s, ok := c.summaries[view]; ok {
		return s
	}
	return c.summaries[ViewFull]
}

func (c *Catalog) render(view View) string {
	blocks := make([]string, 0, len(c.products))
	for _, p := range c.products {
		var b strings.Builder
		fmt.Fprintf(&b, "- id: %s\n", p.ID)
		fmt.Fprintf(&b, "  name: %s\n", p.Name)
		if view == ViewFull {
			fmt.Fprintf(&b, "  price: $%s\n", formatNumber(p.Price))
		}
		fmt.Fprintf(&b, "  netCarbs: %sg, protein: %sg, fiber: %sg\n",
			formatNumber(p.NetCarbs), formatNumber(p.Protein), formatNumber(p.Fiber))
		fmt.Fprintf(&b, "  flavor: %s\n", orDefault(p.Flavor, "unspecified"))
		fmt.Fprintf(&b, "  dietary: %s", joinOrNone(p.Dietary))
		if view == ViewFull {
			fmt.Fprintf(&b, "\n  allergens: %s", joinOrNone(p.Allergens))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
