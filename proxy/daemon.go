package proxy

import (
	"encoding/json"
	"io"
	"net/http"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	proverif "github.com/sbaloglu/proverif-codes"
	"github.com/sbaloglu/proverif-codes/audit"
	_ "github.com/sbaloglu/proverif-codes/audit/json"
	"github.com/sbaloglu/proverif-codes/engine"
	"github.com/sbaloglu/proverif-codes/internal/tracing"
	"github.com/sbaloglu/proverif-codes/serde"
	sjson "github.com/sbaloglu/proverif-codes/serde/json"
	"github.com/sbaloglu/proverif-codes/trace"
	tracejson "github.com/sbaloglu/proverif-codes/trace/json"
	"golang.org/x/xerrors"
)

// Daemon exposes the replay contract over the proxy: the search
// collaborator posts a schedule and reads back the trace, the verdicts
// and the admissibility status of the session it produced.
//
// The daemon is stateless across requests apart from the archive: every
// replay runs in a fresh session of the model.
type Daemon struct {
	models  map[string]*engine.Program
	archive *audit.Archive
	ctx     serde.Context
	tracer  opentracing.Tracer
	logger  zerolog.Logger
}

// NewDaemon creates a daemon serving the models. The archive may be nil,
// in which case the replay outcomes are not persisted.
func NewDaemon(models map[string]*engine.Program, archive *audit.Archive) *Daemon {
	return &Daemon{
		models:  models,
		archive: archive,
		ctx:     sjson.NewContext(),
		tracer:  opentracing.GlobalTracer(),
		logger:  proverif.Logger.With().Str("role", "daemon").Logger(),
	}
}

// RegisterHandlers registers the endpoints of the daemon on the proxy.
func (d *Daemon) RegisterHandlers(p Proxy) {
	p.RegisterHandler("/replay", d.Replay)
	p.RegisterHandler("/evaluate", d.Evaluate)
	p.RegisterHandler("/records", d.Records)
	p.RegisterHandler("/metrics", d.metrics())
}

// Replay executes the schedule of the request body against the model named
// in the query string, and responds with the serialized record of the
// outcome. An inadmissible trace is a regular outcome; a malformed
// schedule is a client error.
func (d *Daemon) Replay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is allowed", http.StatusMethodNotAllowed)
		return
	}

	model, program, ok := d.model(w, r)
	if !ok {
		return
	}

	script, ok := d.script(w, r)
	if !ok {
		return
	}

	span := d.tracer.StartSpan("replay")
	span.SetTag(tracing.ModelTag, model)
	span.SetTag(tracing.ScriptTag, script.Name)
	defer span.Finish()

	session := engine.NewSession(program)

	res, err := session.Replay(script)
	if err != nil {
		http.Error(w, xerrors.Errorf("couldn't replay: %v", err).Error(),
			http.StatusBadRequest)
		return
	}

	verdicts := map[string]trace.Verdict{}

	if res.Inadmissible == nil {
		verdicts, err = session.EvaluateQueries()
		if err != nil {
			http.Error(w, xerrors.Errorf("couldn't evaluate: %v", err).Error(),
				http.StatusInternalServerError)
			return
		}
	}

	rec := audit.NewRecord(model, res, verdicts)

	if d.archive != nil {
		id, err := d.archive.Save(rec)
		if err != nil {
			http.Error(w, xerrors.Errorf("couldn't archive: %v", err).Error(),
				http.StatusInternalServerError)
			return
		}

		rec.ID = id
	}

	d.respond(w, rec)
}

// Evaluate responds with the verdicts of the model queries. With an id in
// the query string the log of the archived record is evaluated, otherwise
// the body is a schedule that is replayed first. An inadmissible trace has
// no verdicts and is refused.
func (d *Daemon) Evaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is allowed", http.StatusMethodNotAllowed)
		return
	}

	model, program, ok := d.model(w, r)
	if !ok {
		return
	}

	var log trace.Log

	id := r.URL.Query().Get("id")
	if id != "" {
		if d.archive == nil {
			http.Error(w, "no archive attached", http.StatusNotFound)
			return
		}

		rec, err := d.archive.Get(model, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		if rec.Inadmissible != "" {
			http.Error(w, rec.Inadmissible, http.StatusConflict)
			return
		}

		log = rec.Log
	} else {
		script, scriptOk := d.script(w, r)
		if !scriptOk {
			return
		}

		session := engine.NewSession(program)

		res, err := session.Replay(script)
		if err != nil {
			http.Error(w, xerrors.Errorf("couldn't replay: %v", err).Error(),
				http.StatusBadRequest)
			return
		}

		if res.Inadmissible != nil {
			http.Error(w, res.Inadmissible.String(), http.StatusConflict)
			return
		}

		log = res.Log
	}

	verdicts, err := trace.EvaluateAll(program.System(), program.Queries(), log)
	if err != nil {
		http.Error(w, xerrors.Errorf("couldn't evaluate: %v", err).Error(),
			http.StatusInternalServerError)
		return
	}

	raws, err := tracejson.EncodeVerdicts(verdicts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(raws)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	d.write(w, data)
}

// Records responds with the identifiers archived for the model, or with
// the serialized record when an id is given.
func (d *Daemon) Records(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is allowed", http.StatusMethodNotAllowed)
		return
	}

	if d.archive == nil {
		http.Error(w, "no archive attached", http.StatusNotFound)
		return
	}

	model, _, ok := d.model(w, r)
	if !ok {
		return
	}

	id := r.URL.Query().Get("id")
	if id != "" {
		rec, err := d.archive.Get(model, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		d.respond(w, rec)
		return
	}

	ids, err := d.archive.List(model)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	data, err := json.Marshal(ids)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	d.write(w, data)
}

func (d *Daemon) metrics() func(http.ResponseWriter, *http.Request) {
	registry := prometheus.NewRegistry()

	for _, c := range proverif.PromCollectors {
		err := registry.Register(c)
		if err != nil {
			d.logger.Warn().Err(err).Msg("couldn't register the collector")
		}
	}

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP
}

func (d *Daemon) model(w http.ResponseWriter, r *http.Request) (string, *engine.Program, bool) {
	name := r.URL.Query().Get("model")

	program, found := d.models[name]
	if !found {
		http.Error(w, xerrors.Errorf("model '%s' is not served", name).Error(),
			http.StatusNotFound)
		return name, nil, false
	}

	return name, program, true
}

func (d *Daemon) script(w http.ResponseWriter, r *http.Request) (engine.Script, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return engine.Script{}, false
	}

	script, err := engine.ParseScript(data)
	if err != nil {
		http.Error(w, xerrors.Errorf("couldn't parse the script: %v", err).Error(),
			http.StatusBadRequest)
		return engine.Script{}, false
	}

	return script, true
}

func (d *Daemon) respond(w http.ResponseWriter, rec audit.Record) {
	data, err := rec.Serialize(d.ctx)
	if err != nil {
		http.Error(w, xerrors.Errorf("couldn't serialize the record: %v", err).Error(),
			http.StatusInternalServerError)
		return
	}

	d.write(w, data)
}

func (d *Daemon) write(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")

	_, err := w.Write(data)
	if err != nil {
		d.logger.Err(err).Msg("couldn't write the response")
	}
}
