package tools

import (
	"fmt"
	"strings"
)

// UnknownToolError reports a tool name that is not in the registry. Agent is
// the role that referenced it, when known.
type UnknownToolError struct {
	Tool  string
	Agent string
	// Known lists the registered names, when the registry supplied them.
	Known []string
}

func (e *UnknownToolError) Error() string {
	msg := fmt.Sprintf("unknown tool %q", e.Tool)
	if e.Agent != "" {
		msg += fmt.Sprintf(" for agent %q", e.Agent)
	}
	if len(e.Known) > 0 {
		msg += " (registered: " + strings.Join(e.Known, ", ") + ")"
	}
	return msg
}
