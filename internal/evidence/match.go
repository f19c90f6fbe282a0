package evidence

import "strings"

// Matches reports whether an evidence record's claim reference is associated
// with a criterion. The rule is case-insensitive: the whole criterion ID must
// appear as a substring of the claim reference, or any underscore-separated
// token of the criterion ID must. An empty claim reference matches nothing.
func Matches(criterionID, claimReference string) bool {
	if criterionID == "" || claimReference == "" {
		return false
	}
	claim := strings.ToLower(claimReference)
	criterion := strings.ToLower(criterionID)

	if strings.Contains(claim, criterion) {
		return true
	}
	for _, token := range strings.Split(criterion, "_") {
		if token != "" && strings.Contains(claim, token) {
			return true
		}
	}
	return false
}
