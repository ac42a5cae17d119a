package interpolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LYNX_TEST_HOST", "example.com")
	t.Setenv("LYNX_TEST_EMPTY", "")

	tests := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "no references", input: "plain text", expected: "plain text"},
		{name: "simple expansion", input: "${LYNX_TEST_HOST}", expected: "example.com"},
		{name: "default used", input: "${LYNX_TEST_MISSING:localhost}", expected: "localhost"},
		{name: "empty default", input: "a${LYNX_TEST_MISSING:}b", expected: "ab"},
		{name: "set but empty wins over default", input: "${LYNX_TEST_EMPTY:x}", expected: ""},
		{
			name:     "mixed",
			input:    "http://${LYNX_TEST_HOST}:${LYNX_TEST_PORT:8080}/",
			expected: "http://example.com:8080/",
		},
		{
			name:        "missing without default",
			input:       "${LYNX_TEST_MISSING}",
			expected:    "${LYNX_TEST_MISSING}",
			expectError: true,
		},
		{name: "not a reference", input: "$LYNX_TEST_HOST", expected: "$LYNX_TEST_HOST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExpandEnvVars(tt.input)
			if tt.expectError {
				require.Error(t, err)
				require.ErrorIs(t, err, ErrUndefinedVar)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExpandEnvVars_ReportsEveryMissingVar(t *testing.T) {
	_, err := ExpandEnvVars("${LYNX_TEST_A_MISSING}/${LYNX_TEST_B_MISSING}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LYNX_TEST_A_MISSING")
	assert.Contains(t, err.Error(), "LYNX_TEST_B_MISSING")
}
