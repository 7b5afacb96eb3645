package tollgate

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/tollgate-ln/tollgate/auth"
	"github.com/tollgate-ln/tollgate/lnclient"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "TOLL"

// log is a logger that is initialized with no output filters. This means
// the package will not perform any logging by default until the caller
// requests it.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// SetupLoggers attaches all package loggers to the given handler, each one
// tagged with its own subsystem.
func SetupLoggers(handler btclog.Handler) {
	UseLogger(btclog.NewSLogger(handler.SubSystem(Subsystem)))
	auth.UseLogger(btclog.NewSLogger(handler.SubSystem(auth.Subsystem)))
	lnclient.UseLogger(btclog.NewSLogger(
		handler.SubSystem(lnclient.Subsystem),
	))
}
