package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProducts() []Product {
	return []Product{
		{
			ID: "alpha", Name: "Alpha N'Oats", Price: 24.99,
			NetCarbs: 4, Protein: 15, Fiber: 9, Flavor: "vanilla",
			Dietary: []string{"keto", "vegan"}, Allergens: []string{"almonds"},
		},
		{
			ID: "beta", Name: "Beta Bundle", Price: 120,
			NetCarbs: 6.5, Protein: 17, Fiber: 8,
		},
	}
}

func TestDefault_LoadsEmbeddedCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Greater(t, c.Len(), 0)
	assert.True(t, c.Contains("weight-loss-bundle"))
	assert.True(t, c.Contains("30-day-glp-bundle"))
}

func TestNew_RejectsBadProducts(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = New([]Product{{ID: "  "}})
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = New([]Product{{ID: "a"}, {ID: " a "}})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestValidIDs_IsACopy(t *testing.T) {
	c, err := New(testProducts())
	require.NoError(t, err)

	ids := c.ValidIDs()
	assert.Len(t, ids, 2)
	delete(ids, "alpha")

	assert.True(t, c.Contains("alpha"))
}

func TestLookup_ReturnsIndependentCopy(t *testing.T) {
	c, err := New(testProducts())
	require.NoError(t, err)

	p, ok := c.Lookup("alpha")
	require.True(t, ok)
	p.Dietary[0] = "mutated"

	again, _ := c.Lookup("alpha")
	assert.Equal(t, "keto", again.Dietary[0])

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestSummarize_FullView(t *testing.T) {
	c, err := New(testProducts())
	require.NoError(t, err)

	expected := "- id: alpha\n" +
		"  name: Alpha N'Oats\n" +
		"  price: $24.99\n" +
		"  netCarbs: 4g, protein: 15g, fiber: 9g\n" +
		"  flavor: vanilla\n" +
		"  dietary: keto, vegan\n" +
		"  allergens: almonds\n" +
		"\n" +
		"- id: beta\n" +
		"  name: Beta Bundle\n" +
		"  price: $120\n" +
		"  netCarbs: 6.5g, protein: 17g, fiber: 8g\n" +
		"  flavor: unspecified\n" +
		"  dietary: none\n" +
		"  allergens: none"

	assert.Equal(t, expected, c.Summarize(ViewFull))
}

func TestSummarize_RecipeViewOmitsPriceAndAllergens(t *testing.T) {
	c, err := New(testProducts())
	require.NoError(t, err)

	summary := c.Summarize(ViewRecipe)

	assert.NotContains(t, summary, "price")
	assert.NotContains(t, summary, "allergens")
	assert.Contains(t, summary, "- id: alpha")
	assert.Contains(t, summary, "netCarbs: 6.5g")
}

func TestSummarize_IsDeterministic(t *testing.T) {
	c1, err := New(testProducts())
	require.NoError(t, err)
	c2, err := New(testProducts())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		assert.Equal(t, c1.Summarize(ViewFull), c2.Summarize(ViewFull))
	}
	assert.Less(t, strings.Index(c1.Summarize(ViewFull), "alpha"), strings.Index(c1.Summarize(ViewFull), "beta"))
	assert.Equal(t, c1.Summarize(ViewFull), c1.Summarize(View("unknown")))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "products:\n  - id: solo\n    name: Solo\n    price: 10\n    dietary: [keto]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)

	p, ok := c.Lookup("solo")
	require.True(t, ok)
	assert.True(t, p.IsDietary("KETO"))
	assert.False(t, p.HasAllergen("milk"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSubset(t *testing.T) {
	c, err := New(testProducts())
	require.NoError(t, err)

	same, err := c.Subset(nil)
	require.NoError(t, err)
	assert.Same(t, c, same)

	sub, err := c.Subset([]string{" beta ", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Len())
	assert.True(t, sub.Contains("beta"))
	assert.False(t, sub.Contains("alpha"))

	_, err = c.Subset([]string{"alpha", "ghost"})
	assert.ErrorIs(t, err, ErrUnknownID)
}
