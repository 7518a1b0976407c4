package sanitizer

// NormalizeStringSlice maps every element through normalizer, dropping
// empties and duplicates while keeping first-seen order.
func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		normalized := normalizer(item)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		result = append(result, normalized)
	}
	return result
}

// NormalizeLabels cleans a list of scraped sport or court labels.
func NormalizeLabels(labels []string) []string {
	return NormalizeStringSlice(labels, NormalizeLabel)
}
