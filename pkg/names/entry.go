// Package names holds the name dictionaries and the normalization and tiered
// lookup that map a raw first name to a gender classification.
//
// A Dictionary is an immutable snapshot built from four tables. Only three of
// them (US, Foreign, Wildcard) take part in lookups; the All table is kept for
// reporting. Lookups never fail: anything that cannot be matched is Unknown.
package names

import (
	"fmt"
	"strings"

	"github.com/otherjamesbrown/gendercode/pkg/gender"
)

// Tier identifies one of the dictionary tables.
type Tier int

const (
	TierAll Tier = iota
	TierUS
	TierForeign
	TierWildcard
)

// Tiers lists every table in load order.
var Tiers = []Tier{TierAll, TierUS, TierForeign, TierWildcard}

var tierNames = map[Tier]string{
	TierAll:      "all",
	TierUS:       "us",
	TierForeign:  "foreign",
	TierWildcard: "wildcard",
}

// String returns the short table name.
func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// MarshalText encodes the tier as its table name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a table name.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier converts a table name ("us", "foreign", ...) into a Tier.
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return TierAll, fmt.Errorf("unknown dictionary tier %q", s)
}

// Entry is one dictionary record. Pattern may contain the wildcard token.
type Entry struct {
	Pattern string        `json:"pattern" yaml:"pattern" toml:"pattern"`
	Gender  gender.Gender `json:"gender" yaml:"gender" toml:"gender"`
}

// Tables holds the raw, ordered contents of the four dictionary tables.
type Tables struct {
	All      []Entry `json:"all,omitempty" yaml:"all,omitempty" toml:"all,omitempty"`
	US       []Entry `json:"us,omitempty" yaml:"us,omitempty" toml:"us,omitempty"`
	Foreign  []Entry `json:"foreign,omitempty" yaml:"foreign,omitempty" toml:"foreign,omitempty"`
	Wildcard []Entry `json:"wildcard,omitempty" yaml:"wildcard,omitempty" toml:"wildcard,omitempty"`
}

// Get returns the entries of one table.
func (t *Tables) Get(tier Tier) []Entry {
	switch tier {
	case TierAll:
		return t.All
	case TierUS:
		return t.US
	case TierForeign:
		return t.Foreign
	case TierWildcard:
		return t.Wildcard
	default:
		return nil
	}
}

// Set replaces the entries of one table.
func (t *Tables) Set(tier Tier, entries []Entry) {
	switch tier {
	case TierAll:
		t.All = entries
	case TierUS:
		t.US = entries
	case TierForeign:
		t.Foreign = entries
	case TierWildcard:
		t.Wildcard = entries
	}
}

// Len returns the total number of entries across all tables.
func (t *Tables) Len() int {
	return len(t.All) + len(t.US) + len(t.Foreign) + len(t.Wildcard)
}
