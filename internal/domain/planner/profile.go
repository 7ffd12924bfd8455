// Package planner holds the request and result shapes that flow through the
// plan, recipe and conversion pipelines.
package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList accepts either a JSON array of strings or a single string.
// Quiz front ends are inconsistent about which they send.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or an array of strings: %w", err)
	}
	*l = many
	return nil
}

// ProfileInput is the customer profile as submitted
type ProfileInput struct {
	Email            string
	Goal             string
	Restrictions     []string
	HealthConditions []string
	ActivityLevel    string
	Timing           []string
	Flavors          []string
	PrepTime         string
	Priority         string
}

// CustomerProfile is the normalized profile embedded in plan prompts.
// Absent scalars serialize as null and absent lists as [] so the prompt text
// for a given input is always the same.
type CustomerProfile struct {
	Email            *string  `json:"email"`
	Goal             *string  `json:"goal"`
	Restrictions     []string `json:"restrictions"`
	HealthConditions []string `json:"health_conditions"`
	ActivityLevel    *string  `json:"activity_level"`
	Timing           []string `json:"timing"`
	Flavors          []string `json:"flavors"`
	PrepTime         *string  `json:"prep_time"`
	Priority         *string  `json:"priority"`
}

// NormalizeProfile applies the null/empty defaults
func NormalizeProfile(in ProfileInput) CustomerProfile {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	return CustomerProfile{
		Email:            optional(email),
		Goal:             optional(in.Goal),
		Restrictions:     CleanList(in.Restrictions),
		HealthConditions: CleanList(in.HealthConditions),
		ActivityLevel:    optional(in.ActivityLevel),
		Timing:           CleanList(in.Timing),
		Flavors:          CleanList(in.Flavors),
		PrepTime:         optional(in.PrepTime),
		Priority:         optional(in.Priority),
	}
}

// EmailAddress returns the profile email or ""
func (p CustomerProfile) EmailAddress() string {
	if p.Email == nil {
		return ""
	}
	return *p.Email
}

// CleanList trims entries, drops blanks and always returns a non-nil slice
func CleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
