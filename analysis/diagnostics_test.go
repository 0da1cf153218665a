package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biometria-se/grizzly-lsp"
)

func TestEditDistanceIdenticalIsZero(t *testing.T) {
	assert.Equal(t, 0, editDistance("abc", "abc"))
}

func TestEditDistanceCountsSubstitutions(t *testing.T) {
	assert.Equal(t, 1, editDistance("cat", "cut"))
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
}

func TestNearestCandidatePicksClosestCleanExpression(t *testing.T) {
	reg := grizzly.DefaultParseTypes()
	store := grizzly.NewStore()

	raw := []grizzly.RawDefinition{
		{Keyword: grizzly.Given, Expression: `set context variable "{name}" to "{value}"`},
		{Keyword: grizzly.Given, Expression: `ask for value of variable "{name}"`},
	}

	inv, err := store.Rebuild(context.Background(), raw, reg)
	require.NoError(t, err)

	best, dist := nearestCandidate(inv, grizzly.Given, `set context variable "" to ""`)

	require.NotNil(t, best)
	assert.Equal(t, 0, dist)
	assert.Contains(t, best.CleanExpression, "set context variable")
}

func TestRenderPassesThroughPlainText(t *testing.T) {
	out, err := Render("t.feature", "Feature: plain\n\tScenario: s\n")

	require.NoError(t, err)
	assert.Equal(t, "Feature: plain\n\tScenario: s\n", out)
}

func TestDiagnoseUnknownStepReportsSuggestion(t *testing.T) {
	reg := grizzly.DefaultParseTypes()
	store := grizzly.NewStore()

	raw := []grizzly.RawDefinition{
		{Keyword: grizzly.Given, Expression: `I send a "{method:Method}" request to "{url}"`},
	}

	inv, err := store.Rebuild(context.Background(), raw, reg)
	require.NoError(t, err)

	text := "Feature: demo\n  Scenario: s\n    Given I send an \"post\" request to \"https://x\"\n"

	diags := Diagnose("t.feature", text, inv)
	require.Len(t, diags, 1)

	assert.Equal(t, "unknown-step", diags[0].Code)
	assert.Contains(t, diags[0].Message, "did you mean")
}

func TestDiagnoseMatchedStepReportsNoDiagnostics(t *testing.T) {
	reg := grizzly.DefaultParseTypes()
	store := grizzly.NewStore()

	raw := []grizzly.RawDefinition{
		{Keyword: grizzly.Given, Expression: `I send a "{method:Method}" request to "{url}"`},
	}

	inv, err := store.Rebuild(context.Background(), raw, reg)
	require.NoError(t, err)

	text := "Feature: demo\n  Scenario: s\n    Given I send a \"post\" request to \"https://x\"\n"

	diags := Diagnose("t.feature", text, inv)
	assert.Empty(t, diags)
}

func TestDiagnoseArgumentValidatorRejectionReportsArgumentInvalid(t *testing.T) {
	reg := grizzly.DefaultParseTypes()
	store := grizzly.NewStore()

	raw := []grizzly.RawDefinition{
		{
			Keyword:    grizzly.Given,
			Expression: `the retry count is {count}`,
			Validators: map[string]string{"count": `int(value) >= 0 && int(value) <= 10`},
		},
	}

	inv, err := store.Rebuild(context.Background(), raw, reg)
	require.NoError(t, err)

	text := "Feature: demo\n  Scenario: s\n    Given the retry count is 99\n"

	diags := Diagnose("t.feature", text, inv)
	require.Len(t, diags, 1)

	assert.Equal(t, "argument-invalid", diags[0].Code)
	assert.Contains(t, diags[0].Message, "count")
}

func TestDiagnoseArgumentValidatorCompileErrorReportsValidatorError(t *testing.T) {
	reg := grizzly.DefaultParseTypes()
	store := grizzly.NewStore()

	raw := []grizzly.RawDefinition{
		{
			Keyword:    grizzly.Given,
			Expression: `the retry count is {count}`,
			Validators: map[string]string{"count": `this does not parse (`},
		},
	}

	inv, err := store.Rebuild(context.Background(), raw, reg)
	require.NoError(t, err)

	text := "Feature: demo\n  Scenario: s\n    Given the retry count is 3\n"

	diags := Diagnose("t.feature", text, inv)
	require.Len(t, diags, 1)

	assert.Equal(t, "argument-validator-error", diags[0].Code)
}

func TestDiagnoseRenderFailureShortCircuits(t *testing.T) {
	reg := grizzly.DefaultParseTypes()
	store := grizzly.NewStore()

	inv, err := store.Rebuild(context.Background(), nil, reg)
	require.NoError(t, err)

	diags := Diagnose("t.feature", "{% if unclosed %}\nFeature: demo\n", inv)
	require.Len(t, diags, 1)

	assert.Equal(t, "render-failed", diags[0].Code)
}

func TestDiagnoseParseFailureShortCircuits(t *testing.T) {
	reg := grizzly.DefaultParseTypes()
	store := grizzly.NewStore()

	inv, err := store.Rebuild(context.Background(), nil, reg)
	require.NoError(t, err)

	diags := Diagnose("t.feature", "this is not a gherkin document at all, just prose.\n", inv)
	require.Len(t, diags, 1)

	assert.Equal(t, "parse-failed", diags[0].Code)
}
