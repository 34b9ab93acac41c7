package analyze

import (
	"fmt"
	"sort"
	"strings"
)

// systemPromptTemplate is filled with the tool catalog.
const systemPromptTemplate = `You are an AI team architect who designs optimal agent teams for complex tasks.
For a given user goal, determine:
1. The necessary specialized agents (2-5 agents)
2. Each agent's role, goal, backstory and required tools
3. The specific tasks each agent should perform, in execution order
4. The execution process (sequential or hierarchical)

Available tools (use these exact names, nothing else):
%s

Return ONLY valid JSON with this structure (no other text):
{
  "agents": [
    {
      "role": "Unique role name",
      "goal": "Agent's goal",
      "backstory": "Brief backstory",
      "tools": ["ToolName1"],
      "allow_delegation": false
    }
  ],
  "tasks": [
    {
      "description": "Task description with placeholders for inputs like {variable}",
      "expected_output": "Expected output description",
      "agent": "Role of the agent that performs this",
      "context": [0]
    }
  ],
  "process": "sequential",
  "manager": ""
}

Rules:
- Roles must be unique; every task's "agent" must be one of the roles above
- "tools" may be empty; list each tool at most once per agent
- "context" is optional and lists earlier tasks (0-based) whose output this task needs
- "process" is "sequential" or "hierarchical"
- "manager" is optional and only used for hierarchical teams; it must be one of the roles`

// toolEntry is one line of the tool catalog.
type toolEntry struct {
	Name    string
	Summary string
}

func buildSystemPrompt(catalog []toolEntry) string {
	var b strings.Builder
	if len(catalog) == 0 {
		b.WriteString("- (none)")
	}
	for i, t := range catalog {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s (%s)", t.Name, t.Summary)
	}
	return fmt.Sprintf(systemPromptTemplate, b.String())
}

// buildUserMessage renders the request and its inputs. Inputs are listed in
// sorted key order so the same request always produces the same message.
func buildUserMessage(prompt string, inputs map[string]string) string {
	var b strings.Builder
	b.WriteString("Design an optimal AI agent team for this goal: ")
	b.WriteString(prompt)

	if len(inputs) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("\n\nInputs (available to tasks as {key} placeholders):\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, inputs[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
