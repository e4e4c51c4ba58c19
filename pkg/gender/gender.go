// Package gender defines the five-valued classification produced by name lookups.
package gender

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Gender is the classification assigned to a first name.
type Gender int

const (
	// Unknown is both the zero value and the answer when no dictionary tier matches.
	Unknown Gender = iota
	Male
	MostlyMale
	Female
	MostlyFemale
)

// All lists every classification in declaration order.
var All = []Gender{Unknown, Male, MostlyMale, Female, MostlyFemale}

var names = map[Gender]string{
	Unknown:      "unknown",
	Male:         "male",
	MostlyMale:   "mostly_male",
	Female:       "female",
	MostlyFemale: "mostly_female",
}

// aliases maps the accepted spellings (lower-cased) to a classification.
// Dictionary tables use the single letter codes; "?M" and "1M" both mean
// "mostly male" in the legacy exports.
var aliases = map[string]Gender{
	"unknown":       Unknown,
	"u":             Unknown,
	"?":             Unknown,
	"":              Unknown,
	"male":          Male,
	"m":             Male,
	"mostly_male":   MostlyMale,
	"mostlymale":    MostlyMale,
	"mostly male":   MostlyMale,
	"?m":            MostlyMale,
	"1m":            MostlyMale,
	"female":        Female,
	"f":             Female,
	"mostly_female": MostlyFemale,
	"mostlyfemale":  MostlyFemale,
	"mostly female": MostlyFemale,
	"?f":            MostlyFemale,
	"1f":            MostlyFemale,
}

// String returns the snake_case name of the classification.
func (g Gender) String() string {
	if s, ok := names[g]; ok {
		return s
	}
	return fmt.Sprintf("gender(%d)", int(g))
}

// Valid reports whether g is one of the five defined classifications.
func (g Gender) Valid() bool {
	_, ok := names[g]
	return ok
}

// Parse converts a textual classification into a Gender.
// Matching is case-insensitive and accepts the letter codes used by dictionary exports.
func Parse(s string) (Gender, error) {
	if g, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return g, nil
	}
	return Unknown, fmt.Errorf("unrecognized gender %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g Gender) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gender) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// MarshalJSON encodes the classification as its string name.
func (g Gender) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON accepts either the string name or the numeric value.
func (g *Gender) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return g.UnmarshalText([]byte(s))
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("gender must be a string or integer: %w", err)
	}
	if !Gender(n).Valid() {
		return fmt.Errorf("gender value %d out of range", n)
	}
	*g = Gender(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (g Gender) MarshalYAML() (interface{}, error) {
	return g.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (g *Gender) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return g.UnmarshalText([]byte(s))
}
