package labels

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	table := Default()
	assert.Equal(t, "person", table.Label(1))
	assert.Equal(t, "cat", table.Label(17))
	assert.Equal(t, "", table.Label(999))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Table
	}{
		{
			name:     "explicit ids",
			input:    "1 person\n17 cat\n18 dog\n",
			expected: Table{1: "person", 17: "cat", 18: "dog"},
		},
		{
			name:     "positional labels",
			input:    "person\nbicycle\ntraffic light\n",
			expected: Table{1: "person", 2: "bicycle", 3: "traffic light"},
		},
		{
			name:     "comments and blank lines",
			input:    "# coco subset\n\n1 person\n\n# animals\n17 cat\n",
			expected: Table{1: "person", 17: "cat"},
		},
		{
			name:     "multi word label with id",
			input:    "10 traffic light\n",
			expected: Table{10: "traffic light"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, table)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader("1 person\n1 people\n"))
	assert.ErrorContains(t, err, "duplicate id 1")

	_, err = Parse(strings.NewReader("person\n42\n"))
	assert.ErrorContains(t, err, "without label")
}

func TestLoad(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), table)

	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("3 car\n"), 0644))
	table, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, Table{3: "car"}, table)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
