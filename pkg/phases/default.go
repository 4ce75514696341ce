package phases

import (
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/fabric"
)

// Default assembles the full pipeline in dependency order.
func Default(clients fabric.Clients) []engine.Phase {
	precheck := NewPrecheck(clients.Exports)
	export := NewStorageExport(clients.Exports)
	connect := NewAggregatorConnect(clients.Aggregator)
	raid := NewOpusRAID(clients.Opus)
	reexport := NewReexport(clients.Aggregator)
	verify := NewVerify(export, connect, raid, reexport)

	return []engine.Phase{precheck, export, connect, raid, reexport, verify}
}
