package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	team "github.com/everydev1618/goteam"
	"github.com/everydev1618/goteam/serve"
)

// serveCmd starts the REST API server.
func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":3001", "HTTP listen address")
	dbPath := fs.String("db", ".goteam.db", "SQLite database path")
	model := fs.String("model", "", "Model to use")
	lead := fs.String("lead", "", "Role name for the coordinating agent")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Println(`Usage: goteam serve [options]

Start a REST API server exposing the team over HTTP. Conversations and
roster counters persist in a SQLite database across restarts.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  goteam serve
  goteam serve --addr :8080 --db /tmp/goteam.db`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	requireAPIKey()
	setupLogging(*verbose)

	builder := team.NewBuilder(newClient(*model), nil)

	var opts []team.OrchestratorOption
	if *lead != "" {
		opts = append(opts, team.WithLeadRole(*lead))
	}
	orch, err := team.NewOrchestrator(builder, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating team: %v\n", err)
		os.Exit(1)
	}

	srv := serve.New(orch, builder, serve.Config{
		Addr:   *addr,
		DBPath: *dbPath,
	})

	// Signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
