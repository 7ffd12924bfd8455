package urlfetch

import (
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute visible text
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Form:     true,
	atom.Iframe:   true,
	atom.Template: true,
}

// block elements end a line
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
	atom.Header: true, atom.Main: true, atom.Blockquote: true, atom.Pre: true,
}

// ExtractText returns the recipe found in JSON-LD data when present and the
// page's visible text otherwise
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var ldBlocks []string
	var b strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Script && isJSONLD(n) && n.FirstChild != nil {
				ldBlocks = append(ldBlocks, n.FirstChild.Data)
				return
			}
			if skipped[n.DataAtom] {
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	for _, data := range ldBlocks {
		if recipe, ok := recipeFromJSONLD(data); ok {
			return recipe, nil
		}
	}
	return normalizeSpace(b.String()), nil
}

func isJSONLD(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "type" && strings.EqualFold(strings.TrimSpace(a.Val), "application/ld+json") {
			return true
		}
	}
	return false
}

// recipeFromJSONLD finds a schema.org Recipe in a JSON-LD document. The
// recipe may be the root, an element of a root array or part of @graph.
func recipeFromJSONLD(data string) (string, bool) {
	if !gjson.Valid(data) {
		return "", false
	}
	root := gjson.Parse(data)

	var candidates []gjson.Result
	switch {
	case root.IsArray():
		candidates = root.Array()
	case root.Get("@graph").IsArray():
		candidates = root.Get("@graph").Array()
	default:
		candidates = []gjson.Result{root}
	}

	for _, c := range candidates {
		if isRecipe(c.Get("@type")) {
			return renderRecipe(c), true
		}
	}
	return "", false
}

func isRecipe(t gjson.Result) bool {
	if t.IsArray() {
		for _, v := range t.Array() {
			if v.String() == "Recipe" {
				return true
			}
		}
		return false
	}
	return t.String() == "Recipe"
}

func renderRecipe(r gjson.Result) string {
	var lines []string
	if name := strings.TrimSpace(r.Get("name").String()); name != "" {
		lines = append(lines, name)
	}
	if y := yield(r.Get("recipeYield")); y != "" {
		lines = append(lines, "Servings: "+y)
	}
	for _, key := range []string{"prepTime", "cookTime", "totalTime"} {
		if v := r.Get(key).String(); v != "" {
			lines = append(lines, key+": "+v)
		}
	}

	lines = append(lines, "", "Ingredients:")
	for _, ing := range r.Get("recipeIngredient").Array() {
		if s := strings.TrimSpace(html.UnescapeString(ing.String())); s != "" {
			lines = append(lines, "- "+s)
		}
	}

	lines = append(lines, "", "Steps:")
	for i, step := range instructions(r.Get("recipeInstructions")) {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, step))
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func yield(v gjson.Result) string {
	if v.IsArray() {
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				return s
			}
		}
		return ""
	}
	return strings.TrimSpace(v.String())
}

// instructions flattens strings, HowToStep and HowToSection entries
func instructions(v gjson.Result) []string {
	var steps []string
	var visit func(item gjson.Result)
	visit = func(item gjson.Result) {
		switch {
		case item.Type == gjson.String:
			for _, line := range strings.Split(item.String(), "\n") {
				if line = strings.TrimSpace(html.UnescapeString(line)); line != "" {
					steps = append(steps, line)
				}
			}
		case item.IsArray():
			for _, child := range item.Array() {
				visit(child)
			}
		case item.IsObject():
			if list := item.Get("itemListElement"); list.Exists() {
				visit(list)
				return
			}
			text := item.Get("text")
			if !text.Exists() {
				text = item.Get("name")
			}
			visit(text)
		}
	}
	visit(v)
	return steps
}

// normalizeSpace collapses runs of spaces and drops empty lines
func normalizeSpace(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
