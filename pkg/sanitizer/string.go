package sanitizer

import "strings"

// TrimAndNormalize collapses runs of whitespace, scraped non-breaking
// spaces included, into single spaces and strips the ends.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLabel cleans a scraped sport or court caption. Casing is kept so
// labels stay readable in the ledger.
func NormalizeLabel(label string) string {
	p := Pipeline{
		TrimAndNormalize,
		func(s string) string { return strings.Trim(s, " -|·") },
	}
	return p.Apply(label)
}

// NormalizeStatusWord lowercases a scraped cell state for table lookups.
func NormalizeStatusWord(s string) string {
	p := Pipeline{
		TrimAndNormalize,
		strings.ToLower,
	}
	return p.Apply(s)
}
