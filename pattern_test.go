package grizzly

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePatternUntyped(t *testing.T) {
	pat, err := NormalizePattern(`set context variable "{name}" to "{value}"`, nil)
	require.NoError(t, err)
	require.Equal(t, `set context variable "" to ""`, pat.CleanExpression)
	require.Len(t, pat.RegexPatterns, 1)
	require.Len(t, pat.ExpressionVariants, 1)
	require.Equal(t, pat.CleanExpression, pat.ExpressionVariants[0])

	require.True(t, pat.RegexPatterns[0].MatchString(`set context variable "foo" to "bar"`))
	require.False(t, pat.RegexPatterns[0].MatchString(`set context variable "foo" to bar`))
}

func TestNormalizePatternWithAlternatives(t *testing.T) {
	registry := DefaultParseTypes()

	pat, err := NormalizePattern(`to endpoint "{method:Method}"`, registry)
	require.NoError(t, err)

	alts, _ := registry.Lookup("Method")
	require.Len(t, pat.ExpressionVariants, len(alts))
	require.Len(t, pat.RegexPatterns, len(alts))

	require.Contains(t, pat.ExpressionVariants, `to endpoint "get"`)

	matched := false

	for _, rx := range pat.RegexPatterns {
		if rx.MatchString(`to endpoint "get"`) {
			matched = true
		}
	}

	require.True(t, matched)
}

func TestNormalizePatternMatchesOwnCleanExpression(t *testing.T) {
	registry := DefaultParseTypes()
	patterns := []string{
		`ask for value of variable "{name}"`,
		`a user of type "{type}" with weight "{weight}" load testing "{host}"`,
		`to endpoint "{method:Method}"`,
	}

	for _, raw := range patterns {
		pat, err := NormalizePattern(raw, registry)
		require.NoError(t, err)

		matched := false

		for _, rx := range pat.RegexPatterns {
			if rx.MatchString(pat.CleanExpression) {
				matched = true
			}
		}

		require.Truef(t, matched, "no regex for %q matched its own clean expression %q", raw, pat.CleanExpression)
	}
}

func TestNormalizePatternMalformedBraces(t *testing.T) {
	_, err := NormalizePattern(`set context variable "{name" to "{value}"`, nil)
	require.Error(t, err)
}

func TestNormalizeTextCollapsesWhitespace(t *testing.T) {
	require.Equal(t, "set context variable", NormalizeText("  Set   Context\tVariable "))
}
