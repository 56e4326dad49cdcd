package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrderLinearChain(t *testing.T) {
	order, err := ResolveOrder([]ServiceNode{
		{Name: "web", DependsOn: []string{"api"}},
		{Name: "api", DependsOn: []string{"db"}},
		{Name: "db"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api", "web"}, order)
}

func TestResolveOrderDeclarationOrderTieBreak(t *testing.T) {
	order, err := ResolveOrder([]ServiceNode{
		{Name: "b"},
		{Name: "a"},
		{Name: "c", DependsOn: []string{"a", "b"}},
	})
	require.NoError(t, err)
	// b and a are both ready at the start; declaration order wins
	assert.Equal(t, []string{"b", "a", "c"}, order)
}

func TestResolveOrderCycle(t *testing.T) {
	_, err := ResolveOrder([]ServiceNode{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "c"},
	})
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"a", "b"}, unresolved.Remaining)
}

func TestResolveOrderMissingDependency(t *testing.T) {
	_, err := ResolveOrder([]ServiceNode{
		{Name: "web", DependsOn: []string{"ghost"}},
		{Name: "db"},
	})
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"web"}, unresolved.Remaining)
	assert.Contains(t, unresolved.Error(), "web")
}

func TestResolveOrderDuplicateDependenciesCountOnce(t *testing.T) {
	order, err := ResolveOrder([]ServiceNode{
		{Name: "api", DependsOn: []string{"db", "db", "db"}},
		{Name: "db"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api"}, order)
}

func TestResolveOrderDuplicateServiceName(t *testing.T) {
	_, err := ResolveOrder([]ServiceNode{
		{Name: "db"},
		{Name: "db"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestResolveOrderEmpty(t *testing.T) {
	order, err := ResolveOrder(nil)
	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestResolveOrderDeterministic(t *testing.T) {
	nodes := []ServiceNode{
		{Name: "cache"},
		{Name: "db"},
		{Name: "api", DependsOn: []string{"db", "cache"}},
		{Name: "worker", DependsOn: []string{"api"}},
		{Name: "web", DependsOn: []string{"api"}},
	}
	first, err := ResolveOrder(nodes)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := ResolveOrder(nodes)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	assert.Equal(t, []string{"cache", "db", "api", "worker", "web"}, first)
}
