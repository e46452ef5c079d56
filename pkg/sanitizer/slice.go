package sanitizer

// NormalizeIDs trims identifiers and drops empties and duplicates while
// keeping the first-seen order.
func NormalizeIDs(ids []string) []string {
	return SanitizeSlice(ids, NormalizeID)
}
