// Command binqr is a CLI client for the BinQR service. Without a server address box and
// location commands run against a local SQLite store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/and161185/binqr/internal/config"
	"github.com/and161185/binqr/internal/errs"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `binqr CLI
Usage:
  binqr [-addr HOST:PORT] [-cacert file | -insecure | -plaintext] [-local db] <cmd> [args]

Account (server only):
  signup     -email <e> -password <p> -confirm <p> -invite <code> [-name <n>]
  login      -email <e> -password <p>                    (saves session)
  logout
  whoami
  profile    [-name <n>] [-avatar <url>]
  password   -password <p> -confirm <p>
  forgot     -email <e>
  reset      -token <t> -password <p> -confirm <p>
  invite     validate -code <c> | create | list | revoke -id <uuid>
  route      -path <path>                                (guard decision for the session)

Storage (server or local):
  location   list | add -name <n> [-desc <d>] | edit -id <uuid> [-name] [-desc] | rm -id <uuid>
  box        list | get -id <uuid> | scan -code <payload> | search [-q <text>] [-location <uuid>]
             add -name <n> -location <uuid> [-desc] [-contents a,b] [-image <url>] [-ai <text>]
             edit -id <uuid> [-contents a,b] [-name] [-desc] [-location <uuid>]
             rm -id <uuid>
  version
`)
	os.Exit(2)
}

// main dispatches subcommands; every command runs under the configured timeout.
func main() {
	cfg, err := config.Load[config.Client]()
	if err != nil {
		fail(err)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server addr (empty: local store)")
	flag.StringVar(&cfg.CAFile, "cacert", cfg.CAFile, "CA cert (PEM)")
	flag.BoolVar(&cfg.SkipVerify, "insecure", cfg.SkipVerify, "skip cert verify (dev)")
	flag.BoolVar(&cfg.Plaintext, "plaintext", cfg.Plaintext, "no TLS (dev)")
	flag.StringVar(&cfg.LocalDB, "local", cfg.LocalDB, "local store path")
	flag.StringVar(&cfg.Session, "session", cfg.Session, "session file")
	debug := flag.Bool("debug", false, "log to stderr")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	if flag.Arg(0) == "version" {
		fmt.Printf("binqr %s (%s)\n", version, buildDate)
		return
	}

	log := zap.NewNop()
	if *debug {
		log, _ = zap.NewDevelopment()
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	a, err := newApp(ctx, cfg, os.Stdout, log)
	if err != nil {
		fail(err)
	}
	defer a.Close()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		fail(err)
	}
}

// ---- output ----

var pretty = protojson.MarshalOptions{Multiline: true, Indent: "  "}

func printJSON(w io.Writer, v any) {
	if m, ok := v.(proto.Message); ok {
		b, err := pretty.Marshal(m)
		if err == nil {
			fmt.Fprintln(w, string(b))
		}
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// describe renders an error for the terminal with its stable reason when there is one.
func describe(err error) string {
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		return fmt.Sprintf("invalid %s: %s", ve.Field, ve.Message)
	}
	if r := errs.Reason(err); r != "" {
		return fmt.Sprintf("error: %s (%s)", err, r)
	}
	if s, ok := status.FromError(err); ok && s.Code() != 0 {
		return fmt.Sprintf("rpc error: code=%s msg=%s", s.Code(), s.Message())
	}
	return err.Error()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, describe(err))
	os.Exit(1)
}
