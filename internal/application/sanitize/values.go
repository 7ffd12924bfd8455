// Package sanitize turns raw model replies into fully-populated result
// records. All defaulting policy for model output lives here: callers get a
// complete value or an UpstreamFormat error, never a partially-checked map.
package sanitize

import (
	"errors"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/dailynoats/planner/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is the cause attached to UpstreamFormat errors
var ErrInvalidJSON = errors.New("model reply is not valid JSON")

// Stats describes what sanitizing discarded
type Stats struct {
	Candidates int
	Dropped    int
}

// parse validates raw and returns its root. A reply wrapped in a markdown
// code fence is unwrapped first.
func parse(raw string) (gjson.Result, error) {
	body := stripFence(strings.TrimSpace(raw))
	if body == "" || !gjson.Valid(body) {
		return gjson.Result{}, apperrors.NewUpstreamFormatError(ErrInvalidJSON)
	}
	return gjson.Parse(body), nil
}

// IsJSONObject reports whether raw, after unwrapping a code fence, is a JSON
// object the sanitizers can work with
func IsJSONObject(raw string) bool {
	body := stripFence(strings.TrimSpace(raw))
	return gjson.Valid(body) && gjson.Parse(body).IsObject()
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// text returns the trimmed value of a JSON string, or "" for anything else
func text(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(r.Str)
}

// number accepts JSON numbers and numeric strings
func number(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		return finite(r.Num)
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0
		}
		return finite(v)
	default:
		return 0
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// maxWholeNumber bounds servings and minute counts taken from model output
const maxWholeNumber = 10000

func wholeNumber(r gjson.Result) int {
	return int(math.Round(math.Min(nonNegative(number(r)), maxWholeNumber)))
}

// textList collects non-empty strings from an array. Object entries are
// flattened into one line from their string and number fields.
func textList(r gjson.Result) []string {
	out := []string{}
	if !r.IsArray() {
		return out
	}
	r.ForEach(func(_, item gjson.Result) bool {
		var s string
		switch {
		case item.Type == gjson.String:
			s = text(item)
		case item.Type == gjson.Number:
			s = item.Raw
		case item.IsObject():
			s = flatten(item)
		}
		if s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

// flatten joins the scalar fields of an object, e.g. an ingredient given as
// {"amount": 1, "unit": "cup", "name": "almond milk"}
func flatten(obj gjson.Result) string {
	ordered := []string{"amount", "quantity", "unit", "name", "item", "title", "description", "text"}
	seen := make(map[string]bool, len(ordered))
	var parts []string

	for _, key := range ordered {
		v := obj.Get(key)
		seen[key] = true
		switch v.Type {
		case gjson.String:
			if s := text(v); s != "" {
				parts = append(parts, s)
			}
		case gjson.Number:
			parts = append(parts, v.Raw)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	obj.ForEach(func(key, v gjson.Result) bool {
		if seen[key.String()] {
			return true
		}
		if s := text(v); s != "" {
			parts = append(parts, s)
		}
		return true
	})
	return strings.Join(parts, " ")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
