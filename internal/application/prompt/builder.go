// Package prompt builds the system and user instructions for each generation
// call. Every builder is a pure function of its inputs so identical requests
// produce byte-identical prompts.
package prompt

import (
	"encoding/json"
	"strings"
)

// Prompts is the instruction pair sent to the model
type Prompts struct {
	System string
	User   string
}

const brandIntro = `You are the AI nutrition assistant for Daily N'Oats, a low-carb, high-protein,
blood-sugar-friendly breakfast brand.`

const preparationRules = `PREPARATION RULES (IMPORTANT):
- Do NOT say "just add water and enjoy".
- Do NOT say "prepare clean water" or "clean water".
- When describing how to make Daily N'Oats, default to:
  "Either add milk and let it sit overnight or cook it. We suggest cooking it."
- You may optionally mention almond milk, oat milk, or other milk alternatives,
  but the phrasing must always center on adding milk, not water.`

const languageRules = `LANGUAGE RULES (IMPORTANT):
- Do NOT refer to "oats" generically.
- Always say "Daily N'Oats", "Daily N'Oats servings", or "Daily N'Oats cups".
- For weekly prep, prefer phrases like:
  "Portion your Daily N'Oats servings for the week" or
  "Pre-portion your Daily N'Oats cups into containers for the week."`

const disclaimer = `This plan is for general information only and is not medical advice.
  Please consult your healthcare provider for personalized recommendations.`

// toJSON renders v for embedding in a prompt. The request types are plain
// structs of strings and slices, so marshalling cannot fail in practice.
func toJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func section(parts ...string) string {
	return strings.Join(parts, "\n\n")
}
