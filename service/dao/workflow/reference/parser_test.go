package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    *Reference
		shouldError bool
	}{
		{description: "plain", input: "@from(resolution)", expected: &Reference{Kind: KindFrom, Name: "resolution"}},
		{description: "whitespace", input: "  @from ( pc_key )  ", expected: &Reference{Kind: KindFrom, Name: "pc_key"}},
		{description: "dotted name", input: "@from(sentinel.band-b04)", expected: &Reference{Kind: KindFrom, Name: "sentinel.band-b04"}},
		{description: "unknown kind", input: "@env(HOME)", shouldError: true},
		{description: "missing name", input: "@from()", shouldError: true},
		{description: "missing close paren", input: "@from(x", shouldError: true},
		{description: "trailing text", input: "@from(x) + 1", shouldError: true},
		{description: "trailing dot", input: "@from(x.)", shouldError: true},
		{description: "not a reference", input: "resolution", shouldError: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, err := Parse([]byte(testCase.input))
			if testCase.shouldError {
				assert.Error(t, err)
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, testCase.expected, actual)
		})
	}
}

func TestIsReference(t *testing.T) {
	assert.True(t, IsReference("@from(x)"))
	assert.True(t, IsReference(" @frm(x)"))
	assert.False(t, IsReference("user@example.com"))
	assert.False(t, IsReference("@"))
	assert.False(t, IsReference("@1"))
}
