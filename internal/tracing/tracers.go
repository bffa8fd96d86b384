// Package tracing connects the replay daemon to a jaeger backend. Tracers
// are cached per listening address, so the spans of concurrent daemons in
// one process stay apart.
package tracing

import (
	"io"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	_ "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"golang.org/x/xerrors"
)

var (
	// ModelTag is the span tag carrying the election model a request
	// replays.
	ModelTag = "model"
	// ScriptTag is the span tag carrying the name of the replayed
	// schedule.
	ScriptTag = "script"
)

type tracerCatalog struct {
	tracerByAddr map[string]closableTracer
	sync.Mutex
}

type closableTracer struct {
	tracer opentracing.Tracer
	closer io.Closer
}

var catalog = tracerCatalog{
	tracerByAddr: make(map[string]closableTracer),
}

// GetTracerForAddr returns an `opentracing.Tracer` for the address the
// daemon listens on, configured from the jaeger environment variables.
// Since the tracers are cached, it returns an existing one if it has been
// initialized before.
func GetTracerForAddr(addr string) (opentracing.Tracer, error) {
	catalog.Lock()
	defer catalog.Unlock()

	tc, ok := catalog.tracerByAddr[addr]
	if ok {
		return tc.tracer, nil
	}

	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, xerrors.Errorf("error parsing jaeger configuration from environment: %v", err)
	}

	cfg.ServiceName = addr
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, xerrors.Errorf("error creating new tracer: %v", err)
	}

	catalog.tracerByAddr[addr] = closableTracer{
		tracer: tracer,
		closer: closer,
	}

	return tracer, nil
}

// CloseAll flushes and closes every tracer of the catalog. The daemon
// calls it once on the way down.
func CloseAll() error {
	for _, tc := range catalog.tracerByAddr {
		err := tc.closer.Close()
		if err != nil {
			return err
		}
	}

	return nil
}
