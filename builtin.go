package team

// Built-in template names.
const (
	TemplateCustomerSupport = "customer_support"
	TemplateCodeAssistant   = "code_assistant"
	TemplateDataAnalyst     = "data_analyst"
	TemplateContentCreator  = "content_creator"
	TemplateAPIIntegrator   = "api_integrator"
	TemplateTeamLead        = "team_lead"
	TemplateAgentBuilder    = "agent_builder"
)

// BuiltinTemplates returns the stock agent templates. Tool names are left
// empty; callers wire catalog tools per deployment.
func BuiltinTemplates() []AgentTemplate {
	return []AgentTemplate{
		{
			Name:        TemplateCustomerSupport,
			Description: "Agent specialized in customer support and service",
			Instructions: "You are a professional customer support agent. You help customers with " +
				"their inquiries, resolve issues, and provide excellent service. You are patient, " +
				"empathetic, and solution-oriented. Always maintain a friendly and professional tone.",
			Model:       DefaultModel,
			Temperature: 0.3,
			MaxTokens:   DefaultMaxTokens,
		},
		{
			Name:        TemplateCodeAssistant,
			Description: "Agent specialized in code generation, debugging, and development assistance",
			Instructions: "You are an expert software developer and code assistant. You help with " +
				"code generation, debugging, code review, and technical problem-solving. You provide " +
				"clear explanations, follow best practices, and write clean, efficient code. You " +
				"support multiple programming languages and frameworks.",
			Model:       DefaultModel,
			Temperature: 0.2,
			MaxTokens:   DefaultMaxTokens,
		},
		{
			Name:        TemplateDataAnalyst,
			Description: "Agent specialized in data analysis, visualization, and insights",
			Instructions: "You are a skilled data analyst. You help analyze data, create " +
				"visualizations, generate insights, and provide data-driven recommendations. You " +
				"work with various data formats and use statistical methods to uncover patterns " +
				"and trends.",
			Model:       DefaultModel,
			Temperature: 0.4,
			MaxTokens:   DefaultMaxTokens,
		},
		{
			Name:        TemplateContentCreator,
			Description: "Agent specialized in writing, documentation, and content strategy",
			Instructions: "You are a versatile content creator. You write clear documentation, " +
				"engaging articles, and well-structured copy. You adapt tone and depth to the " +
				"audience and keep content accurate and easy to follow.",
			Model:       DefaultModel,
			Temperature: 0.7,
			MaxTokens:   DefaultMaxTokens,
		},
		{
			Name:        TemplateAPIIntegrator,
			Description: "Agent specialized in connecting and operating external APIs",
			Instructions: "You are an API integration specialist. You understand REST, GraphQL, " +
				"and webhook-based services. You use the API tools available to you to fetch data, " +
				"trigger operations, and troubleshoot integration issues. Report exactly what each " +
				"call returned.",
			Model:       DefaultModel,
			Temperature: 0.3,
			MaxTokens:   DefaultMaxTokens,
		},
		{
			Name:        TemplateTeamLead,
			Description: "Coordinating agent that assigns work and synthesizes team output",
			Instructions: "You are the team lead of a group of specialist AI agents. You analyze " +
				"incoming requests, decide which specialists should handle them, and combine their " +
				"contributions into one coherent answer. When you answer directly, be concise and " +
				"practical.",
			Model:       DefaultModel,
			Temperature: 0.5,
			MaxTokens:   DefaultMaxTokens,
		},
		{
			Name:        TemplateAgentBuilder,
			Description: "Meta-agent specialized in creating and configuring other agents",
			Instructions: "You are an expert agent builder and architect. You specialize in " +
				"creating, configuring, and optimizing AI agents for specific use cases. You " +
				"understand agent design patterns, prompt engineering, tool integration, and " +
				"workflow orchestration. You help users design the right agent for their needs.",
			Model:       DefaultModel,
			Temperature: 0.6,
			MaxTokens:   DefaultMaxTokens,
		},
	}
}
