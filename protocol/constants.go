package protocol

// JSONRPCVersion is the protocol version tag carried by every message.
const JSONRPCVersion = "2.0"

// MCPVersion is the MCP protocol revision negotiated during initialize.
const MCPVersion = "2024-11-05"

// MCP method names.
const (
	MethodInitialize      = "initialize"
	MethodInitialized     = "initialized"
	MethodShutdown        = "shutdown"
	MethodToolsList       = "tools/list"
	MethodToolsCall       = "tools/call"
	MethodResourcesList   = "resources/list"
	MethodResourcesRead   = "resources/read"
	MethodPromptsList     = "prompts/list"
	MethodPromptsGet      = "prompts/get"
	MethodLoggingSetLevel = "logging/setLevel"
)

// MCP notification methods.
const (
	MethodProgress         = "notifications/progress"
	MethodMessage          = "notifications/message"
	MethodResourcesUpdated = "notifications/resources/updated"
	MethodToolsUpdated     = "notifications/tools/updated"
)
