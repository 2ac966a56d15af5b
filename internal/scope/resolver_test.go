package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnet2/quickcmd/pkg/types"
)

func node(id, name string) *types.Node {
	return &types.Node{ID: id, Kind: types.KindCommand, Name: name, Command: name}
}

func TestResolve_LocalWins(t *testing.T) {
	eff := Resolve(Layers{
		types.ScopeGlobal:    {node("A", "a")},
		types.ScopeWorkspace: {},
		types.ScopeLocal:     {node("B", "b")},
	})
	require.Len(t, eff.Entries, 1)
	assert.Equal(t, "B", eff.Entries[0].Node.ID)
	assert.Equal(t, types.ScopeLocal, eff.Entries[0].Scope)
}

func TestResolve_FallsThrough(t *testing.T) {
	eff := Resolve(Layers{
		types.ScopeGlobal:    {node("A", "a")},
		types.ScopeWorkspace: {},
		types.ScopeLocal:     {},
	})
	require.Len(t, eff.Entries, 1)
	assert.Equal(t, "A", eff.Entries[0].Node.ID)
	assert.Equal(t, types.ScopeGlobal, eff.Entries[0].Scope)

	eff = Resolve(Layers{types.ScopeGlobal: {node("A", "a")}})
	assert.Equal(t, "A", eff.Entries[0].Node.ID)
}

func TestResolve_PerSlot(t *testing.T) {
	eff := Resolve(Layers{
		types.ScopeGlobal:    {node("g0", "g0"), node("g1", "g1"), node("g2", "g2")},
		types.ScopeWorkspace: {node("w0", "w0"), node("w1", "w1")},
		types.ScopeLocal:     {node("l0", "l0")},
	})
	ids := []string{}
	scopes := []types.Scope{}
	for _, e := range eff.Entries {
		ids = append(ids, e.Node.ID)
		scopes = append(scopes, e.Scope)
	}
	assert.Equal(t, []string{"l0", "w1", "g2"}, ids)
	assert.Equal(t, []types.Scope{types.ScopeLocal, types.ScopeWorkspace, types.ScopeGlobal}, scopes)
}

func TestResolve_WholeEntryNoDeepMerge(t *testing.T) {
	global := &types.Node{ID: "x", Kind: types.KindCommand, Name: "Build", Command: "make", Shortcut: "b", Color: "red"}
	local := &types.Node{ID: "x", Kind: types.KindCommand, Name: "Build", Command: "make local"}

	eff := Resolve(Layers{types.ScopeGlobal: {global}, types.ScopeLocal: {local}})
	got := eff.Entries[0].Node
	assert.Equal(t, "make local", got.Command)
	assert.Empty(t, got.Shortcut, "fields of the lower layer never leak in")
	assert.Empty(t, got.Color)
}

func TestResolve_IsSnapshot(t *testing.T) {
	layer := []*types.Node{node("A", "a")}
	eff := Resolve(Layers{types.ScopeGlobal: layer})

	layer[0].Name = "changed"
	assert.Equal(t, "a", eff.Entries[0].Node.Name)
}

func TestEffective_Find(t *testing.T) {
	grp := &types.Node{ID: "g", Kind: types.KindGroup, Name: "$(rocket) Deploy", Children: []*types.Node{
		node("c1", "Stage"),
		node("c2", "Prod"),
	}}
	eff := Resolve(Layers{types.ScopeWorkspace: {node("a", "Build"), grp}})

	m, ok := eff.Find("c2")
	require.True(t, ok)
	assert.Equal(t, "Prod", m.Node.Name)
	require.Len(t, m.Ancestors, 1)
	assert.Equal(t, "g", m.Ancestors[0].ID)
	assert.Equal(t, types.ScopeWorkspace, m.Scope)

	_, ok = eff.Find("nope")
	assert.False(t, ok)

	m, ok = eff.FindByName("deploy")
	require.True(t, ok)
	assert.Equal(t, "g", m.Node.ID)

	paths := eff.Paths()
	require.Len(t, paths, 4)
	assert.Equal(t, "Deploy/Prod", paths[3].Path)
}
