// Package main implements the symbolic election checker command line. It
// bundles the election models, replays hand-written or generated
// schedules against them, evaluates the verifiability queries and can
// serve the whole contract over HTTP for an external schedule search.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sbaloglu/proverif-codes/audit"
	_ "github.com/sbaloglu/proverif-codes/audit/json"
	"github.com/sbaloglu/proverif-codes/cli"
	"github.com/sbaloglu/proverif-codes/cli/ucli"
	"github.com/sbaloglu/proverif-codes/engine"
	"github.com/sbaloglu/proverif-codes/internal/tracing"
	"github.com/sbaloglu/proverif-codes/protocols/basic"
	"github.com/sbaloglu/proverif-codes/protocols/selene"
	"github.com/sbaloglu/proverif-codes/proxy"
	phttp "github.com/sbaloglu/proverif-codes/proxy/http"
	sjson "github.com/sbaloglu/proverif-codes/serde/json"
	"github.com/sbaloglu/proverif-codes/trace"
	tracejson "github.com/sbaloglu/proverif-codes/trace/json"
	"golang.org/x/xerrors"
)

var out io.Writer = os.Stdout

func main() {
	err := makeApp().Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeApp() cli.Application {
	builder := ucli.NewBuilder("symelect", nil)

	cmd := builder.SetCommand("models")
	cmd.SetDescription("list the bundled election models")
	cmd.SetAction(modelsAction)

	cmd = builder.SetCommand("replay")
	cmd.SetDescription("replay a schedule and print the session record")
	cmd.SetFlags(
		cli.StringFlag{Name: "model", Usage: "name of the model", Required: true},
		cli.StringFlag{Name: "script", Usage: "path to the schedule", Required: true},
		cli.StringFlag{Name: "db", Usage: "path to the archive database"},
	)
	cmd.SetAction(replayAction)

	cmd = builder.SetCommand("query")
	cmd.SetDescription("replay a schedule and print the query verdicts")
	cmd.SetFlags(
		cli.StringFlag{Name: "model", Usage: "name of the model", Required: true},
		cli.StringFlag{Name: "script", Usage: "path to the schedule", Required: true},
	)
	cmd.SetAction(queryAction)

	cmd = builder.SetCommand("daemon")
	cmd.SetDescription("serve the models over HTTP")
	cmd.SetFlags(
		cli.StringFlag{Name: "listen", Usage: "address to listen on", Value: "127.0.0.1:8080"},
		cli.StringFlag{Name: "db", Usage: "path to the archive database"},
		cli.StringFlag{Name: "tracer", Usage: "address of the tracing agent"},
	)
	cmd.SetAction(daemonAction)

	return builder.Build()
}

// models compiles the bundled models. Compilation is cheap enough to
// redo per invocation, and it keeps the commands stateless.
func models() (map[string]*engine.Program, error) {
	basicProgram, err := basic.NewProgram()
	if err != nil {
		return nil, xerrors.Errorf("couldn't compile '%s': %v", basic.Name, err)
	}

	seleneProgram, err := selene.NewProgram()
	if err != nil {
		return nil, xerrors.Errorf("couldn't compile '%s': %v", selene.Name, err)
	}

	return map[string]*engine.Program{
		basic.Name:  basicProgram,
		selene.Name: seleneProgram,
	}, nil
}

func modelsAction(flags cli.Flags) error {
	programs, err := models()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		program := programs[name]
		fmt.Fprintf(out, "%s\t%d templates\t%d restrictions\t%d queries\n", name,
			len(program.Templates()), len(program.Restrictions()), len(program.Queries()))
	}

	return nil
}

func replayAction(flags cli.Flags) error {
	name, res, verdicts, err := replay(flags)
	if err != nil {
		return err
	}

	rec := audit.NewRecord(name, res, verdicts)

	if db := flags.String("db"); db != "" {
		archive, err := audit.NewArchive(db, sjson.NewContext())
		if err != nil {
			return xerrors.Errorf("couldn't open the archive: %v", err)
		}

		defer archive.Close()

		rec.ID, err = archive.Save(rec)
		if err != nil {
			return xerrors.Errorf("couldn't save the record: %v", err)
		}
	}

	data, err := rec.Serialize(sjson.NewContext())
	if err != nil {
		return xerrors.Errorf("couldn't serialize the record: %v", err)
	}

	fmt.Fprintln(out, string(data))

	return nil
}

func queryAction(flags cli.Flags) error {
	_, res, verdicts, err := replay(flags)
	if err != nil {
		return err
	}

	if res.Inadmissible != nil {
		return xerrors.Errorf("trace is inadmissible: %v", res.Inadmissible)
	}

	raws, err := tracejson.EncodeVerdicts(verdicts)
	if err != nil {
		return xerrors.Errorf("couldn't encode the verdicts: %v", err)
	}

	data, err := json.MarshalIndent(raws, "", "  ")
	if err != nil {
		return xerrors.Errorf("couldn't marshal the verdicts: %v", err)
	}

	fmt.Fprintln(out, string(data))

	return nil
}

// replay runs the schedule of the script flag against the model flag. The
// verdicts are nil when the trace came out inadmissible.
func replay(flags cli.Flags) (string, engine.Result, map[string]trace.Verdict, error) {
	name := flags.String("model")

	programs, err := models()
	if err != nil {
		return name, engine.Result{}, nil, err
	}

	program, found := programs[name]
	if !found {
		return name, engine.Result{}, nil, xerrors.Errorf("model '%s' is not bundled", name)
	}

	data, err := os.ReadFile(flags.String("script"))
	if err != nil {
		return name, engine.Result{}, nil, xerrors.Errorf("couldn't read the script: %v", err)
	}

	script, err := engine.ParseScript(data)
	if err != nil {
		return name, engine.Result{}, nil, xerrors.Errorf("couldn't parse the script: %v", err)
	}

	sess := engine.NewSession(program)

	res, err := sess.Replay(script)
	if err != nil {
		return name, engine.Result{}, nil, xerrors.Errorf("couldn't replay the script: %v", err)
	}

	var verdicts map[string]trace.Verdict

	if res.Inadmissible == nil {
		verdicts, err = sess.EvaluateQueries()
		if err != nil {
			return name, engine.Result{}, nil, xerrors.Errorf("couldn't evaluate the queries: %v", err)
		}
	}

	return name, res, verdicts, nil
}

func daemonAction(flags cli.Flags) error {
	programs, err := models()
	if err != nil {
		return err
	}

	if addr := flags.String("tracer"); addr != "" {
		tracer, err := tracing.GetTracerForAddr(addr)
		if err != nil {
			return xerrors.Errorf("couldn't start the tracer: %v", err)
		}

		opentracing.SetGlobalTracer(tracer)

		defer tracing.CloseAll()
	}

	var archive *audit.Archive

	if db := flags.String("db"); db != "" {
		archive, err = audit.NewArchive(db, sjson.NewContext())
		if err != nil {
			return xerrors.Errorf("couldn't open the archive: %v", err)
		}

		defer archive.Close()
	}

	srv := phttp.NewHTTP(flags.String("listen"))
	proxy.NewDaemon(programs, archive).RegisterHandlers(srv)

	srv.Listen()

	return nil
}
