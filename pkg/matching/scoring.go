package matching

// maxCompareLength bounds the Levenshtein input size so a single oversized
// name can't blow up the O(len(a)*len(b)) scan.
const maxCompareLength = 500

// Scorer provides string similarity scoring for lead matching
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Similarity returns a similarity score between 0.0 and 1.0 based on
// Levenshtein edit distance: 1 - distance/max(len(a), len(b)). Inputs longer
// than maxCompareLength are truncated before scoring. Two empty strings
// score 1.0.
func (s *Scorer) Similarity(a, b string) float64 {
	if len(a) > maxCompareLength {
		a = a[:maxCompareLength]
	}
	if len(b) > maxCompareLength {
		b = b[:maxCompareLength]
	}

	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}

	distance := s.LevenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create two rows for dynamic programming
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}
