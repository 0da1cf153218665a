package grizzly

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRaw() []RawDefinition {
	return []RawDefinition{
		{Keyword: Given, Expression: `set context variable "{name}" to "{value}"`, Help: "sets a variable"},
		{Keyword: Given, Expression: `ask for value of variable "{name}"`, Help: "asks for a variable"},
		{Keyword: When, Expression: `to endpoint "{method:Method}"`, Help: "sends a request"},
	}
}

func TestStoreRebuildAndLookup(t *testing.T) {
	s := NewStore()
	inv, err := s.Rebuild(context.Background(), testRaw(), DefaultParseTypes())
	require.NoError(t, err)
	require.Equal(t, uint64(1), inv.Revision())

	def, ok := inv.Lookup(Given, `set context variable "foo" to "bar"`)
	require.True(t, ok)
	require.Equal(t, `set context variable "" to ""`, def.CleanExpression)

	_, ok = inv.Lookup(Then, `set context variable "foo" to "bar"`)
	require.False(t, ok)
}

func TestStoreRebuildSkipsMalformedEntriesButKeepsRest(t *testing.T) {
	raw := append(testRaw(), RawDefinition{Keyword: Given, Expression: `broken "{name`})

	s := NewStore()
	inv, err := s.Rebuild(context.Background(), raw, DefaultParseTypes())
	require.Error(t, err)
	require.NotNil(t, inv)

	_, ok := inv.Lookup(Given, `ask for value of variable "foo"`)
	require.True(t, ok)
}

func TestStoreSnapshotNeverObservesPartialInventory(t *testing.T) {
	s := NewStore()
	_, err := s.Rebuild(context.Background(), testRaw(), DefaultParseTypes())
	require.NoError(t, err)

	before := s.Snapshot()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			_, _ = s.Rebuild(context.Background(), testRaw(), DefaultParseTypes())
		}()
	}

	wg.Wait()

	after := s.Snapshot()
	require.GreaterOrEqual(t, after.Revision(), before.Revision())
	require.NotEmpty(t, after.All(Given))
}

func TestInventoryCandidatesPrefixMatch(t *testing.T) {
	s := NewStore()
	inv, err := s.Rebuild(context.Background(), testRaw(), DefaultParseTypes())
	require.NoError(t, err)

	cands := inv.Candidates(Given, NormalizeText("set context"))
	require.Len(t, cands, 1)
	require.Equal(t, `set context variable "" to ""`, cands[0].CleanExpression)

	require.Len(t, inv.Candidates(Given, ""), 2)
}
