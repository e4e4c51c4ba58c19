package names

import (
	"strings"

	"github.com/otherjamesbrown/gendercode/pkg/gender"
)

// index maps a folded key to the classification of the first entry that produced it.
type index map[string]gender.Gender

// TierStats describes how one table was indexed.
type TierStats struct {
	Tier       Tier `json:"tier" yaml:"tier"`
	Entries    int  `json:"entries" yaml:"entries"`
	Indexed    int  `json:"indexed" yaml:"indexed"`
	Duplicates int  `json:"duplicates" yaml:"duplicates"`
	Rejected   int  `json:"rejected" yaml:"rejected"`
}

// Dictionary is an immutable, concurrency-safe snapshot of the name tables.
type Dictionary struct {
	all      []Entry
	us       index
	foreign  index
	wildcard index
	stats    []TierStats
}

// NewDictionary indexes the given tables. The tables are copied, so later
// changes by the caller do not affect the snapshot.
//
// Within a table the first entry for a key wins. Wildcard entries whose
// pattern has no wildcard token, and entries with an empty pattern, are
// rejected and counted in Stats.
func NewDictionary(tables Tables) *Dictionary {
	d := &Dictionary{
		all: append([]Entry(nil), tables.All...),
	}
	d.stats = append(d.stats, TierStats{Tier: TierAll, Entries: len(tables.All), Indexed: len(tables.All)})

	var st TierStats
	d.us, st = buildIndex(TierUS, tables.US, func(p string) (string, bool) {
		return p, true
	})
	d.stats = append(d.stats, st)

	d.foreign, st = buildIndex(TierForeign, tables.Foreign, func(p string) (string, bool) {
		return stripWildcard(p), true
	})
	d.stats = append(d.stats, st)

	d.wildcard, st = buildIndex(TierWildcard, tables.Wildcard, func(p string) (string, bool) {
		return p, HasWildcard(p)
	})
	d.stats = append(d.stats, st)

	return d
}

func buildIndex(tier Tier, entries []Entry, keyOf func(string) (string, bool)) (index, TierStats) {
	st := TierStats{Tier: tier, Entries: len(entries)}
	idx := make(index, len(entries))
	for _, e := range entries {
		key, ok := keyOf(strings.TrimSpace(e.Pattern))
		if !ok || key == "" {
			st.Rejected++
			continue
		}
		key = fold(key)
		if _, exists := idx[key]; exists {
			st.Duplicates++
			continue
		}
		idx[key] = e.Gender
	}
	st.Indexed = len(idx)
	return idx, st
}

// Match explains how a name was classified.
type Match struct {
	Input   string        `json:"input" yaml:"input"`
	Key     string        `json:"key" yaml:"key"`
	Gender  gender.Gender `json:"gender" yaml:"gender"`
	Matched bool          `json:"matched" yaml:"matched"`
	Tier    Tier          `json:"-" yaml:"-"`
	// TierName is empty when nothing matched.
	TierName string `json:"tier,omitempty" yaml:"tier,omitempty"`
}

// Lookup classifies a raw first name. It never fails; unmatched, empty and
// malformed input all yield gender.Unknown. A nil Dictionary answers Unknown.
func (d *Dictionary) Lookup(name string) gender.Gender {
	return d.Explain(name).Gender
}

// Explain runs the lookup and reports the normalized key and the table that matched.
//
// Keys containing the wildcard token are compared against the Wildcard table,
// all others against the US table. Either way the Foreign table is the final
// fallback, compared with wildcard tokens ignored on both sides.
func (d *Dictionary) Explain(name string) Match {
	m := Match{Input: name, Key: NormalizeKey(name)}
	if m.Key == "" || d == nil {
		return m
	}

	folded := fold(m.Key)

	primary, primaryTier := d.us, TierUS
	if HasWildcard(m.Key) {
		primary, primaryTier = d.wildcard, TierWildcard
	}
	if g, ok := primary[folded]; ok {
		return m.found(primaryTier, g)
	}

	if g, ok := d.foreign[stripWildcard(folded)]; ok {
		return m.found(TierForeign, g)
	}

	return m
}

func (m Match) found(tier Tier, g gender.Gender) Match {
	m.Gender = g
	m.Matched = true
	m.Tier = tier
	m.TierName = tier.String()
	return m
}

// Stats reports per-table entry counts. The slice is a copy.
func (d *Dictionary) Stats() []TierStats {
	if d == nil {
		return nil
	}
	return append([]TierStats(nil), d.stats...)
}

// All returns a copy of the All table, which takes no part in lookups.
func (d *Dictionary) All() []Entry {
	if d == nil {
		return nil
	}
	return append([]Entry(nil), d.all...)
}

// Empty reports whether no lookup table has any indexed entry.
func (d *Dictionary) Empty() bool {
	return d == nil || len(d.us)+len(d.foreign)+len(d.wildcard) == 0
}
