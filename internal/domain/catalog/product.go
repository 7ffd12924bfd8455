package catalog

import "strings"

// Product is a sellable catalog item. Products are loaded once and never mutated.
type Product struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Price     float64  `yaml:"price" json:"price"`
	NetCarbs  float64  `yaml:"net_carbs" json:"netCarbs"`
	Protein   float64  `yaml:"protein" json:"protein"`
	Fiber     float64  `yaml:"fiber" json:"fiber"`
	Flavor    string   `yaml:"flavor" json:"flavor,omitempty"`
	Dietary   []string `yaml:"dietary" json:"dietary"`
	Allergens []string `yaml:"allergens" json:"allergens"`
}

// HasAllergen reports whether the product lists the allergen (case-insensitive)
func (p Product) HasAllergen(allergen string) bool {
	return containsFold(p.Allergens, allergen)
}

// IsDietary reports whether the product carries the dietary tag (case-insensitive)
func (p Product) IsDietary(tag string) bool {
	return containsFold(p.Dietary, tag)
}

// clone returns a copy that shares no slices with the receiver
func (p Product) clone() Product {
	p.Dietary = append([]string{}, p.Dietary...)
	p.Allergens = append([]string{}, p.Allergens...)
	return p
}

func containsFold(values []string, want string) bool {
	want = strings.TrimSpace(want)
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// View selects which product attributes a summary includes
type View string

const (
	// ViewFull includes price and allergens, used for plan prompts
	ViewFull View = "full"
	// ViewRecipe omits price and allergens, used for recipe prompts
	ViewRecipe View = "recipe"
)
