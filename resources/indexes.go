package resources

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseIndexRange parses a single "from-to" range into its constituent
// indexes, inclusive of both ends.
func ParseIndexRange(from, to string) ([]int32, error) {
	f, err := strconv.ParseInt(from, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse error for '%s': %s", from, err)
	}
	t, err := strconv.ParseInt(to, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse error for '%s': %s", to, err)
	}
	var parsed []int32
	for i := int32(f); i <= int32(t); i++ {
		parsed = append(parsed, i)
	}
	return parsed, nil
}

// ParseIndexList expands a Job status.completedIndexes-style pattern
// ("1,2,4-10") into the full list of indexes it denotes.
func ParseIndexList(pattern string) ([]int32, error) {
	if pattern == "" {
		return nil, nil
	}
	var parsed []int32
	terms := strings.Split(pattern, ",")
	for _, term := range terms {
		literals := strings.Split(term, "-")
		switch {
		case len(literals) == 1:
			i, err := strconv.ParseInt(literals[0], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parse error: %s", err)
			}
			parsed = append(parsed, int32(i))
		case len(literals) == 2:
			r, err := ParseIndexRange(literals[0], literals[1])
			if err != nil {
				return nil, fmt.Errorf("error in range: %s", err)
			}
			parsed = append(parsed, r...)
		default:
			return nil, fmt.Errorf("error in range syntax, got '%s'", term)
		}
	}
	return parsed, nil
}

// FormatIndexList compresses a set of completed indexes into the same
// "1,2,4-10" interval notation ParseIndexList accepts, the representation
// an indexed Job's status.completedIndexes is kept in.
func FormatIndexList(indexes []int32) string {
	if len(indexes) == 0 {
		return ""
	}
	sorted := append([]int32(nil), indexes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var terms []string
	start := sorted[0]
	prev := sorted[0]
	flush := func(end int32) {
		if start == end {
			terms = append(terms, strconv.FormatInt(int64(start), 10))
		} else if end == start+1 {
			terms = append(terms, strconv.FormatInt(int64(start), 10), strconv.FormatInt(int64(end), 10))
		} else {
			terms = append(terms, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, idx := range sorted[1:] {
		if idx == prev {
			continue
		}
		if idx == prev+1 {
			prev = idx
			continue
		}
		flush(prev)
		start = idx
		prev = idx
	}
	flush(prev)
	return strings.Join(terms, ",")
}
