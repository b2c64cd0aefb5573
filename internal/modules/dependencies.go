package modules

const (
	// All is the umbrella target: everything needed to run conduct as a
	// standalone server. It is an ordinary module whose dependency edges
	// pull in the rest; the graph engine does not special-case it.
	All string = "all"

	Core                  string = "core"
	InstrumentationServer string = "instrumentation-server"
	ConfigWatcher         string = "config-watcher"
	MemberlistKV          string = "memberlistkv"
	SearchRing            string = "search-ring"
	SearchDistributor     string = "search-distributor"
	StorageServer         string = "storage-server"
)

// DependencyMap is the shared static dependency table. It may reference
// modules that a given edition never registers (the ring, distributor and
// storage entries below); the engine only installs edges whose source
// module is registered, and the registry drops edge destinations that are
// not. This keeps one table usable across editions with different module
// sets.
var DependencyMap = map[string][]string{
	All:                   {Core},
	Core:                  {ConfigWatcher},
	InstrumentationServer: {},
	ConfigWatcher:         {},
	MemberlistKV:          {InstrumentationServer},
	SearchRing:            {InstrumentationServer, MemberlistKV},
	SearchDistributor:     {InstrumentationServer, MemberlistKV, SearchRing},
	StorageServer:         {InstrumentationServer, SearchRing},
}
