// Package main provides the goteam CLI.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	team "github.com/everydev1618/goteam"
	"github.com/everydev1618/goteam/llm"
)

var (
	version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "chat":
		chatCmd(args)
	case "serve":
		serveCmd(args)
	case "templates":
		templatesCmd(args)
	case "build":
		buildCmd(args)
	case "version":
		fmt.Printf("goteam %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`goteam - Multi-Agent Team Orchestration

Usage:
  goteam <command> [options]

Commands:
  chat       Interactive chat with an agent team
  serve      Start the REST API server
  templates  List available agent templates
  build      Recommend an agent configuration for a task
  version    Print version information
  help       Show this help message

Examples:
  goteam chat
  goteam serve --addr :3001
  goteam build "an agent that reviews pull requests"

Run 'goteam <command> --help' for more information on a command.`)
}

// requireAPIKey exits if no Groq API key is configured.
func requireAPIKey() {
	if os.Getenv("GROQ_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GROQ_API_KEY environment variable not set")
		os.Exit(1)
	}
}

// newClient builds the LLM client from flags and environment.
func newClient(model string) llm.Client {
	var opts []llm.GroqOption
	if model != "" {
		opts = append(opts, llm.WithModel(model))
	}
	groq := llm.NewGroq(opts...)
	return llm.NewBreakerClient(groq, llm.DefaultBreakerConfig())
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// chatCmd starts an interactive session with a full team.
func chatCmd(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	model := fs.String("model", "", "Model to use (default "+llm.DefaultGroqModel+")")
	lead := fs.String("lead", "", "Role name for the coordinating agent")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Println(`Usage: goteam chat [options]

Start an interactive chat session. Each message is routed to the team
members best suited to answer it.

Commands inside the session:
  /status  Show team status
  /roles   List team roles
  /quit    Exit

Options:`)
		fs.PrintDefaults()
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

	fmt.Printf("Team ready: %s\n", strings.Join(orch.Roster().Roles(), ", "))
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			switch line {
			case "/quit", "/exit", "/q":
				fmt.Println("Goodbye!")
				return
			case "/help", "/h":
				fmt.Println("Commands: /status /roles /quit")
			case "/status":
				data, _ := json.MarshalIndent(orch.Status(), "", "  ")
				fmt.Println(string(data))
			case "/roles":
				for _, role := range orch.Roster().Roles() {
					fmt.Printf("  %s\n", role)
				}
			default:
				fmt.Printf("Unknown command: %s\n", line)
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		stream, err := orch.ChatStream(ctx, line)
		if err != nil {
			cancel()
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println()
		for chunk := range stream.Chunks() {
			fmt.Print(chunk)
		}
		cancel()
		if err := stream.Err(); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// templatesCmd lists the registered agent templates.
func templatesCmd(args []string) {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	registry := team.NewRegistry(nil)
	for _, tmpl := range team.BuiltinTemplates() {
		registry.Register(tmpl)
	}

	if *asJSON {
		var summaries []team.TemplateSummary
		for s := range registry.List() {
			summaries = append(summaries, s)
		}
		data, _ := json.MarshalIndent(summaries, "", "  ")
		fmt.Println(string(data))
		return
	}

	for s := range registry.List() {
		fmt.Printf("  %-18s %s\n", s.Name, s.Description)
	}
}

// buildCmd asks the agent-builder meta-agent for a configuration.
func buildCmd(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	model := fs.String("model", "", "Model to use")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Println(`Usage: goteam build "<task description>"

Ask the agent-builder which agent configuration fits a task. Prints the
recommendation without creating anything.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no task description given")
		fs.Usage()
		os.Exit(1)
	}
	requireAPIKey()
	setupLogging(*verbose)

	builder := team.NewBuilder(newClient(*model), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rec, err := builder.Recommend(ctx, strings.Join(fs.Args(), " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	data, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(data))
}
