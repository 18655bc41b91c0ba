// Package levenshtein measures edit distance between domain names, used to
// suggest a well-known provider when a domain looks like a typo.
package levenshtein

// Distance returns the Levenshtein edit distance between s and t,
// counted in runes.
func Distance(s, t string) int {
	a, b := []rune(s), []rune(t)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	row := make([]int, len(a)+1)
	for i := range row {
		row[i] = i
	}
	for j, bc := range b {
		diag := row[0]
		row[0] = j + 1
		for i, ac := range a {
			cost := 1
			if ac == bc {
				cost = 0
			}
			next := min(row[i+1]+1, row[i]+1, diag+cost)
			diag = row[i+1]
			row[i+1] = next
		}
	}
	return row[len(a)]
}

// Closest returns the entry of known nearest to s, provided its distance
// is between 1 and limit inclusive. Exact matches return ok=false: there is
// nothing to suggest.
func Closest(s string, known []string, limit int) (best string, ok bool) {
	bestDist := limit + 1
	for _, k := range known {
		d := Distance(s, k)
		if d == 0 {
			return "", false
		}
		if d < bestDist {
			best, bestDist = k, d
		}
	}
	return best, bestDist <= limit
}
