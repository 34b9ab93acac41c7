package models

// ToolName identifies a tool an agent can be given. The set is closed: only
// the names below are ever registered.
type ToolName string

const (
	// ToolExaSearch runs semantic web search through Exa.
	ToolExaSearch ToolName = "ExaSearchTool"
	// ToolWebsiteSearch fetches a web page and searches its text.
	ToolWebsiteSearch ToolName = "WebsiteSearchTool"
	// ToolFileRead reads a local file.
	ToolFileRead ToolName = "FileReadTool"
)

// Valid returns true if the name is one of the supported tools.
func (n ToolName) Valid() bool {
	switch n {
	case ToolExaSearch, ToolWebsiteSearch, ToolFileRead:
		return true
	default:
		return false
	}
}

// KnownToolNames returns every supported tool name in a stable order.
func KnownToolNames() []ToolName {
	return []ToolName{ToolExaSearch, ToolWebsiteSearch, ToolFileRead}
}
