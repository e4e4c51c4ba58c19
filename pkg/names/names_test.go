package names

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/gendercode/pkg/gender"
)

func sampleTables() Tables {
	return Tables{
		All: []Entry{
			{Pattern: "john", Gender: gender.Male},
			{Pattern: "mary+jane", Gender: gender.Female},
			{Pattern: "liu", Gender: gender.MostlyFemale},
		},
		US: []Entry{
			{Pattern: "john", Gender: gender.Male},
			{Pattern: "Robert", Gender: gender.Male},
			{Pattern: "Edgar", Gender: gender.Male},
			{Pattern: "kim", Gender: gender.MostlyFemale},
			{Pattern: "KIM", Gender: gender.MostlyMale},
		},
		Wildcard: []Entry{
			{Pattern: "mary+jane", Gender: gender.Female},
			{Pattern: "jean+luc", Gender: gender.Male},
			{Pattern: "nowildcard", Gender: gender.Female},
		},
		Foreign: []Entry{
			{Pattern: "liu", Gender: gender.MostlyFemale},
			{Pattern: "jo+ao", Gender: gender.Male},
			{Pattern: "kim", Gender: gender.Female},
			{Pattern: "", Gender: gender.Male},
		},
	}
}

func TestStripInitials(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Robert J. Smith", "Robert  Smith"},
		{"J. Robert", "Robert"},
		{"J. Edgar", "Edgar"},
		{"John Q.", "John"},
		{"  Mary  ", "Mary"},
		{"A.B.", ""},
		{".", ""},
		{".John", "John"},
		{"John .", "John"},
		{"J.R.R. Tolkien", "Tolkien"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := StripInitials(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, ".")
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mary-Jane", "Mary+Jane"},
		{"Mary Jane", "Mary+Jane"},
		{" Jean-Luc P. ", "Jean+Luc"},
		{"Robert J. Smith", "Robert++Smith"},
		{"John", "John"},
		{"   ", ""},
		{"Q.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	inputs := []string{"John", "Mary-Jane", "Robert J. Smith", "  x-y z ", "J. Edgar", "Ünal", "a+b"}
	for _, in := range inputs {
		once := NormalizeKey(in)
		assert.Equal(t, once, NormalizeKey(once), "input %q", in)
	}
}

func TestDictionary_WorkedExample(t *testing.T) {
	d := NewDictionary(Tables{
		US:       []Entry{{Pattern: "john", Gender: gender.Male}},
		Wildcard: []Entry{{Pattern: "mary+jane", Gender: gender.Female}},
		Foreign:  []Entry{{Pattern: "liu", Gender: gender.MostlyFemale}},
	})

	inputs := []string{"John Q.", "Mary-Jane", "Liu", "Zzyzx"}
	want := []gender.Gender{gender.Male, gender.Female, gender.MostlyFemale, gender.Unknown}

	for i, in := range inputs {
		assert.Equal(t, want[i], d.Lookup(in), "input %q", in)
	}
}

func TestDictionary_Lookup_SimpleCaseMapping(t *testing.T) {
	d := NewDictionary(Tables{
		US: []Entry{
			{Pattern: "strasse", Gender: gender.Male},
			{Pattern: "Ævar", Gender: gender.Male},
			{Pattern: "ΟΔΥΣΣΕΥΣ", Gender: gender.Male},
		},
		Foreign: []Entry{{Pattern: "dürst", Gender: gender.Female}},
	})

	tests := []struct {
		in   string
		want gender.Gender
	}{
		{"STRASSE", gender.Male},
		{"Straße", gender.Unknown},
		{"ævar", gender.Male},
		{"ÆVAR", gender.Male},
		{"οδυσσευς", gender.Male},
		{"DÜRST", gender.Female},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Lookup(tt.in), "input %q", tt.in)
	}
}

func TestDictionary_Lookup(t *testing.T) {
	d := NewDictionary(sampleTables())

	tests := []struct {
		name     string
		in       string
		want     gender.Gender
		wantTier string
	}{
		{"us case insensitive", "JOHN", gender.Male, "us"},
		{"trailing initial", "Robert J.", gender.Male, "us"},
		{"leading initial", "J. Edgar", gender.Male, "us"},
		{"first match wins", "Kim", gender.MostlyFemale, "us"},
		{"wildcard hyphen", "mary-jane", gender.Female, "wildcard"},
		{"wildcard space", "Jean Luc", gender.Male, "wildcard"},
		{"foreign fallback", "liu", gender.MostlyFemale, "foreign"},
		{"foreign pattern wildcard stripped", "Joao", gender.Male, "foreign"},
		{"foreign input wildcard stripped", "Jo-ao", gender.Male, "foreign"},
		{"wildcard-tier entry without token is rejected", "nowildcard", gender.Unknown, ""},
		{"unmatched", "Zzyzx", gender.Unknown, ""},
		{"empty", "", gender.Unknown, ""},
		{"only initials", "A. B.", gender.Unknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := d.Explain(tt.in)
			assert.Equal(t, tt.want, m.Gender)
			assert.Equal(t, tt.wantTier, m.TierName)
			assert.Equal(t, tt.wantTier != "", m.Matched)
			assert.Equal(t, tt.want, d.Lookup(tt.in))
		})
	}
}

func TestDictionary_WildcardRouting(t *testing.T) {
	// "ann+marie" only exists in the US table; a wildcard key must never reach it.
	d := NewDictionary(Tables{
		US: []Entry{{Pattern: "ann+marie", Gender: gender.Female}},
	})

	m := d.Explain("Ann-Marie")
	assert.Equal(t, "Ann+Marie", m.Key)
	assert.False(t, m.Matched)
	assert.Equal(t, gender.Unknown, m.Gender)
}

func TestDictionary_NilAndEmpty(t *testing.T) {
	var nilDict *Dictionary
	assert.Equal(t, gender.Unknown, nilDict.Lookup("John"))
	assert.True(t, nilDict.Empty())
	assert.Nil(t, nilDict.Stats())

	empty := NewDictionary(Tables{})
	assert.True(t, empty.Empty())
	assert.Equal(t, gender.Unknown, empty.Lookup("John"))
}

func TestDictionary_Totality(t *testing.T) {
	d := NewDictionary(sampleTables())
	inputs := []string{"", " ", ".", "...", "-", "+", "a-", "--x--", "é", "名前", "John\tSmith", strings.Repeat("x. ", 50)}
	for _, in := range inputs {
		assert.True(t, d.Lookup(in).Valid(), "input %q", in)
	}
}

func TestDictionary_Stats(t *testing.T) {
	d := NewDictionary(sampleTables())
	stats := d.Stats()
	require.Len(t, stats, 4)

	byTier := map[Tier]TierStats{}
	for _, st := range stats {
		byTier[st.Tier] = st
	}

	assert.Equal(t, 3, byTier[TierAll].Entries)
	assert.Equal(t, 5, byTier[TierUS].Entries)
	assert.Equal(t, 1, byTier[TierUS].Duplicates)
	assert.Equal(t, 4, byTier[TierUS].Indexed)
	assert.Equal(t, 1, byTier[TierWildcard].Rejected)
	assert.Equal(t, 2, byTier[TierWildcard].Indexed)
	assert.Equal(t, 1, byTier[TierForeign].Rejected)
	assert.Equal(t, 3, byTier[TierForeign].Indexed)
}

func TestDictionary_CopiesTables(t *testing.T) {
	tables := Tables{All: []Entry{{Pattern: "john", Gender: gender.Male}}}
	d := NewDictionary(tables)
	tables.All[0].Gender = gender.Female

	assert.Equal(t, gender.Male, d.All()[0].Gender)
}

func TestDictionary_ConcurrentLookups(t *testing.T) {
	d := NewDictionary(sampleTables())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if d.Lookup("Mary-Jane") != gender.Female || d.Lookup("john") != gender.Male {
					t.Error("unexpected concurrent lookup result")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestParseTier(t *testing.T) {
	for _, tier := range Tiers {
		got, err := ParseTier(strings.ToUpper(tier.String()))
		require.NoError(t, err)
		assert.Equal(t, tier, got)
	}

	_, err := ParseTier("martian")
	assert.Error(t, err)
}

func TestTierStats_JSON(t *testing.T) {
	data, err := json.Marshal(TierStats{Tier: TierWildcard, Entries: 2, Indexed: 2})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tier":"wildcard"`)

	var st TierStats
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, TierWildcard, st.Tier)
}

func TestTables_GetSet(t *testing.T) {
	var tables Tables
	for i, tier := range Tiers {
		entries := make([]Entry, i+1)
		tables.Set(tier, entries)
		assert.Len(t, tables.Get(tier), i+1)
	}
	assert.Equal(t, 10, tables.Len())
}
