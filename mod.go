// Package proverif is the root of the symbolic election-verifiability
// toolkit. It implements the execution side of ProVerif-style election
// models as a library: a term algebra with an equational theory, an
// append-only bulletin board, public and private channels under an active
// network attacker, and a deterministic replay engine that evaluates
// correspondence properties against the recorded trace.
//
// The repository is organized by concern:
//   - term: symbolic terms, signatures and the rewrite system
//   - relation: the bulletin-board tables
//   - channel: the messaging substrate
//   - engine: role processes, the attacker and the replay scheduler
//   - trace: event logs, restrictions and queries
//   - protocols: the election models themselves
//
// The exhaustive exploration of schedules is delegated to an external
// solver which drives the engine through the replay contract, either in
// process or through the proxy daemon.
package proverif

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// PromCollectors exposes the Prometheus collectors of the packages, so
// that the daemon can register them on demand.
var PromCollectors []prometheus.Collector

// Logger is a globally available logger instance. By default it stays
// quiet; the level can be raised through the LLVL environment variable.
var Logger = zerolog.New(logout).Level(defaultLevel).
	With().Timestamp().Logger().
	With().Caller().Logger()

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "LLVL"

const defaultLevel = zerolog.WarnLevel

func init() {
	lvl := os.Getenv(EnvLogLevel)

	var level zerolog.Level

	switch lvl {
	case "error":
		level = zerolog.ErrorLevel
	case "warn":
		level = zerolog.WarnLevel
	case "info":
		level = zerolog.InfoLevel
	case "debug":
		level = zerolog.DebugLevel
	case "trace":
		level = zerolog.TraceLevel
	case "":
		level = defaultLevel
	default:
		level = zerolog.TraceLevel
	}

	Logger = Logger.Level(level)
}
