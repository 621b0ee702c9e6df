// Package team routes natural-language tasks to a team of specialist AI agents.
//
// A team is a roster of agent instances, each built from a named template.
// The Team Lead coordinates: the Orchestrator classifies an incoming message,
// dispatches it to the right specialists, and merges their replies into one
// answer.
//
// # Quick Start
//
// Build a team and talk to it:
//
//	client := llm.NewGroq()
//	catalog := tools.NewCatalog()
//	builder := team.NewBuilder(client, catalog)
//
//	orch, err := team.NewOrchestrator(builder)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := orch.Chat(ctx, "Write a function to parse CSV files")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Response)
//
// # Templates
//
// Agents are created from templates held in a Registry. Built-in templates
// cover common roles (customer support, code assistant, data analyst, and
// others); custom templates can be registered, saved to disk, and loaded
// back:
//
//	reg := builder.Registry()
//	reg.Register(team.AgentTemplate{
//	    Name:         "translator",
//	    Instructions: "You translate text between languages.",
//	    Model:        "llama3-70b-8192",
//	    Temperature:  0.2,
//	    MaxTokens:    2048,
//	})
//
// # The Agent Builder
//
// The Builder is itself backed by a meta-agent that can pick and configure
// an agent from a plain-language description:
//
//	inst, err := builder.BuildFromDescription(ctx,
//	    "I need an agent that reviews pull requests for style issues")
//
// # Tools
//
// Agents call tools from a shared catalog. Tools can be registered as Go
// functions, loaded from YAML definitions, bridged from MCP servers, or
// generated from API specifications (OpenAPI, GraphQL, endpoint listings)
// by the adapter package.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Concurrent requests for
// the same team member are queued and served one at a time.
package team
