package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/entsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_UnmappedIsNone(t *testing.T) {
	p := Default()
	for _, kind := range core.DefaultKinds() {
		assert.True(t, p.Resolve(kind).IsNone(), "kind %s", kind)
	}
}

func TestExample(t *testing.T) {
	p := Example()
	assert.Equal(t, core.TagSet("category"), p.Resolve("locations"))
	assert.Equal(t, core.Attribute("persons"), p.Resolve("persons"))
	assert.Equal(t, core.Attribute("dates"), p.Resolve("dates"))
	assert.Equal(t, core.None(), p.Resolve("organizations"))
}

func TestStatic_CopiesTable(t *testing.T) {
	routes := map[core.EntityKind]core.RoutingTarget{"dates": core.Attribute("dates")}
	p := Static(routes)
	routes["dates"] = core.TagSet("changed")

	assert.Equal(t, core.Attribute("dates"), p.Resolve("dates"))
}

func TestResolve_Deterministic(t *testing.T) {
	policies := map[string]Policy{
		"default": Default(),
		"example": Example(),
		"registry": func() Policy {
			reg := NewRegistry(Example())
			require.NoError(t, reg.Register("tags", Layer(Static(map[core.EntityKind]core.RoutingTarget{
				"persons": core.TagSet("people"),
			}))))
			return reg.Policy()
		}(),
	}

	for name, p := range policies {
		t.Run(name, func(t *testing.T) {
			for _, kind := range []core.EntityKind{"dates", "persons", "locations", "unknown"} {
				first := p.Resolve(kind)
				for i := 0; i < 100; i++ {
					assert.Equal(t, first, p.Resolve(kind))
				}
			}
		})
	}
}

func TestRegistry_Overrides(t *testing.T) {
	reg := NewRegistry(Example())

	// Extend: route a new kind.
	require.NoError(t, reg.Register("orgs", Layer(Static(map[core.EntityKind]core.RoutingTarget{
		"organizations": core.TagSet("organization"),
	}))))

	// Substitute and disable through a filter-style override.
	require.NoError(t, reg.Register("filter", func(kind core.EntityKind, current core.RoutingTarget) core.RoutingTarget {
		switch kind {
		case "dates":
			return core.None()
		case "persons":
			return core.TagSet("people")
		}
		return current
	}))

	p := reg.Policy()
	assert.Equal(t, core.TagSet("organization"), p.Resolve("organizations"))
	assert.Equal(t, core.None(), p.Resolve("dates"))
	assert.Equal(t, core.TagSet("people"), p.Resolve("persons"))
	assert.Equal(t, core.TagSet("category"), p.Resolve("locations"))
	assert.Equal(t, []string{"orgs", "filter"}, reg.Names())
}

func TestRegistry_SnapshotIsImmutable(t *testing.T) {
	reg := NewRegistry(nil)
	p := reg.Policy()

	require.NoError(t, reg.Register("late", Layer(Example())))

	assert.True(t, p.Resolve("locations").IsNone(), "existing snapshot must not change")
	assert.Equal(t, core.TagSet("category"), reg.Policy().Resolve("locations"))
}

func TestRegistry_RegisterErrors(t *testing.T) {
	reg := NewRegistry(nil)

	assert.ErrorIs(t, reg.Register("", Layer(Example())), ErrEmptyOverrideName)
	assert.ErrorIs(t, reg.Register("x", nil), ErrNilOverride)
	require.NoError(t, reg.Register("x", Layer(Example())))
	assert.ErrorIs(t, reg.Register("x", Layer(Example())), ErrOverrideExists)

	assert.True(t, reg.Unregister("x"))
	assert.False(t, reg.Unregister("x"))
	assert.Empty(t, reg.Names())
}

type countingPolicy struct {
	calls map[core.EntityKind]int
	inner Policy
}

func (c *countingPolicy) Resolve(kind core.EntityKind) core.RoutingTarget {
	c.calls[kind]++
	return c.inner.Resolve(kind)
}

func TestPass_ResolvesOncePerKind(t *testing.T) {
	counter := &countingPolicy{calls: map[core.EntityKind]int{}, inner: Example()}
	pass := NewPass(counter)

	for i := 0; i < 5; i++ {
		pass.Resolve("locations")
		pass.Routes(core.DefaultKinds())
		pass.SourceFields(core.DefaultKinds())
	}

	for _, kind := range core.DefaultKinds() {
		assert.Equal(t, 1, counter.calls[kind], "kind %s", kind)
	}
}

func TestPass_Routes(t *testing.T) {
	reg := NewRegistry(Example())
	require.NoError(t, reg.Register("no-dates", func(kind core.EntityKind, current core.RoutingTarget) core.RoutingTarget {
		if kind == "dates" {
			return core.None()
		}
		return current
	}))

	routes := NewPass(reg.Policy()).Routes(core.DefaultKinds())
	assert.Len(t, routes, 2)
	assert.NotContains(t, routes, core.EntityKind("dates"))
}

func TestPass_SourceFields(t *testing.T) {
	fields := NewPass(Example()).SourceFields(core.DefaultKinds())
	assert.Equal(t, []string{
		"entities.dates",
		"entities.persons",
		"entities.locations",
		"meta.dates",
		"meta.persons",
		"terms.category",
	}, fields)

	fields = NewPass(Default()).SourceFields([]core.EntityKind{"dates", "dates"})
	assert.Equal(t, []string{"entities.dates"}, fields)
}

func TestParse(t *testing.T) {
	p, err := Parse([]byte(`
routes:
  locations: {tagset: category}
  persons: {attribute: people}
  dates: {}
`))
	require.NoError(t, err)
	assert.Equal(t, core.TagSet("category"), p.Resolve("locations"))
	assert.Equal(t, core.Attribute("people"), p.Resolve("persons"))
	assert.True(t, p.Resolve("dates").IsNone())

	_, err = Parse([]byte(`routes: {x: {tagset: a, attribute: b}}`))
	assert.ErrorIs(t, err, ErrInvalidRoute)

	_, err = Parse([]byte(`routes: [`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  locations: {tagset: place}\n"), 0644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, core.TagSet("place"), p.Resolve("locations"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
