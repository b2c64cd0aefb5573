package modules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduct/internal/services"
)

func noopInit(name string) InitFn {
	return func() (*services.Service, error) {
		return services.NewService(name, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}), nil
	}
}

func nilInit() (*services.Service, error) { return nil, nil }

func TestRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("core", noopInit("core")))

	err := r.Register("core", noopInit("core"))
	require.Error(t, err)

	var dup *DuplicateModuleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "core", dup.Module)

	// Invisible registration collides with visible registration too.
	err = r.RegisterInvisible("core", noopInit("core"))
	require.ErrorAs(t, err, &dup)
}

func TestAddDependencyUnknownSourceFails(t *testing.T) {
	r := NewRegistry()
	err := r.AddDependency("ghost", "core")
	require.Error(t, err)

	var unknown *UnknownModuleError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Module)
}

func TestAddDependencyDropsUnregisteredDestinations(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("ring", noopInit("ring")))
	require.NoError(t, r.Register("core", noopInit("core")))

	// "memberlistkv" is not registered in this edition; the edge to it
	// must be dropped without an error.
	require.NoError(t, r.AddDependency("ring", "core", "memberlistkv"))
	assert.Equal(t, []string{"core"}, r.Dependencies("ring"))

	resolved, err := r.Resolve("ring")
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "ring"}, resolved)
}

func TestResolveTransitiveClosure(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"core", "ring", "distributor"} {
		require.NoError(t, r.Register(name, noopInit(name)))
	}
	require.NoError(t, r.AddDependency("ring", "core"))
	require.NoError(t, r.AddDependency("distributor", "core", "ring"))

	resolved, err := r.Resolve("distributor")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"core", "ring", "distributor"}, resolved)

	// Dependency order: a module appears after everything it requires.
	idx := make(map[string]int, len(resolved))
	for i, name := range resolved {
		idx[name] = i
	}
	assert.Less(t, idx["core"], idx["ring"])
	assert.Less(t, idx["ring"], idx["distributor"])
}

func TestResolveDuplicateTargets(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("core", noopInit("core")))

	resolved, err := r.Resolve("core", "core", "core")
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, resolved)
}

func TestResolveUnknownTargetFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("core", noopInit("core")))

	_, err := r.Resolve("storage-server")
	require.Error(t, err)

	var unknown *UnknownModuleError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "storage-server", unknown.Module)
}

func TestResolveDetectsCycle(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(name, noopInit(name)))
	}
	require.NoError(t, r.AddDependency("a", "b"))
	require.NoError(t, r.AddDependency("b", "c"))
	require.NoError(t, r.AddDependency("c", "a"))

	_, err := r.Resolve("a")
	require.Error(t, err)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	// The path names one concrete cycle, first node repeated at the end.
	require.GreaterOrEqual(t, len(cycle.Path), 4)
	assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
	assert.Contains(t, err.Error(), "->")
}

func TestResolveSelfCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a", noopInit("a")))
	require.NoError(t, r.AddDependency("a", "a"))

	_, err := r.Resolve("a")
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "a"}, cycle.Path)
}

func TestInitServicesInvokesFactoriesOnce(t *testing.T) {
	r := NewRegistry()
	counts := map[string]int{}

	countingInit := func(name string) InitFn {
		return func() (*services.Service, error) {
			counts[name]++
			return services.NewService(name, func(ctx context.Context) error { return nil }), nil
		}
	}

	require.NoError(t, r.Register("core", countingInit("core")))
	require.NoError(t, r.Register("ring", countingInit("ring")))
	require.NoError(t, r.Register("unused", countingInit("unused")))
	require.NoError(t, r.AddDependency("ring", "core"))

	serviceMap, err := r.InitServices("ring", "core")
	require.NoError(t, err)

	assert.Len(t, serviceMap, 2)
	assert.Equal(t, 1, counts["core"], "factory must run exactly once")
	assert.Equal(t, 1, counts["ring"])
	assert.Zero(t, counts["unused"], "factories run only for needed modules")
}

func TestInitServicesSkipsNilService(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("all", nilInit))
	require.NoError(t, r.Register("core", noopInit("core")))
	require.NoError(t, r.AddDependency("all", "core"))

	serviceMap, err := r.InitServices("all")
	require.NoError(t, err)
	assert.Len(t, serviceMap, 1)
	assert.Contains(t, serviceMap, "core")
}

func TestInitServicesFactoryError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("listener busy")
	require.NoError(t, r.Register("core", func() (*services.Service, error) {
		return nil, boom
	}))

	_, err := r.InitServices("core")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "core")
}

func TestVisibleModulesOmitsInvisible(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("core", noopInit("core")))
	require.NoError(t, r.Register("all", nilInit))
	require.NoError(t, r.RegisterInvisible("config-watcher", noopInit("config-watcher")))

	assert.Equal(t, []string{"all", "core"}, r.VisibleModules())
}
