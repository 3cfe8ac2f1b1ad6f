package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndexRange(t *testing.T) {
	got, err := ParseIndexRange("3", "10")
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 4, 5, 6, 7, 8, 9, 10}, got)

	_, err = ParseIndexRange("a", "10")
	assert.Error(t, err)
}

func TestParseIndexList(t *testing.T) {
	cases := []struct {
		pattern string
		exp     []int32
		isError bool
	}{
		{"100", []int32{100}, false},
		{"1,2,3,4,5,6,10", []int32{1, 2, 3, 4, 5, 6, 10}, false},
		{"1,2,4-10", []int32{1, 2, 4, 5, 6, 7, 8, 9, 10}, false},
		{"1-10", []int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, false},
		{"a,2,3", nil, true},
		{"a-3", nil, true},
	}
	for _, tc := range cases {
		got, err := ParseIndexList(tc.pattern)
		if tc.isError {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.exp, got)
	}
}

func TestFormatIndexListRoundTrips(t *testing.T) {
	indexes := []int32{1, 2, 4, 5, 6, 7, 8, 9, 10}
	formatted := FormatIndexList(indexes)
	assert.Equal(t, "1,2,4-10", formatted)

	parsed, err := ParseIndexList(formatted)
	require.NoError(t, err)
	assert.Equal(t, indexes, parsed)
}

func TestFormatIndexListEmpty(t *testing.T) {
	assert.Equal(t, "", FormatIndexList(nil))
}
