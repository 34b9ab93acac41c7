package crew

import (
	"fmt"
	"sort"
	"strings"
)

// interpolator replaces {key} placeholders with input values. Unknown
// placeholders are left as written.
func interpolator(inputs map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", inputs[k])
	}
	return strings.NewReplacer(pairs...)
}

func agentSystemPrompt(a *Agent, r *strings.Replacer) string {
	return fmt.Sprintf("You are %s. %s\nYour personal goal is: %s",
		a.Role, r.Replace(a.Backstory), r.Replace(a.Goal))
}

// priorOutput is the result of an earlier task, as passed to later ones.
type priorOutput struct {
	task   *Task
	output string
}

func taskPrompt(t *Task, r *strings.Replacer, context []priorOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Task: %s\n\n", r.Replace(t.Description))
	fmt.Fprintf(&b, "This is the expected criteria for your final answer: %s\n", r.Replace(t.ExpectedOutput))
	b.WriteString("You MUST return the actual complete content as the final answer, not a summary.")

	if len(context) > 0 {
		b.WriteString("\n\nThis is the context you're working with:\n")
		writeOutputs(&b, context)
	}
	return b.String()
}

func writeOutputs(b *strings.Builder, outputs []priorOutput) {
	for i, p := range outputs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(b, "[Task %d by %s: %s]\n%s", p.task.Index+1, p.task.Agent.Role, p.task.Description, p.output)
	}
}

const managerSystemTemplate = `You are %s. %s
Your personal goal is: %s
You coordinate a team of agents. You decide who works on each task and you combine their work into the final answer.`

func managerSystemPrompt(m *Agent, r *strings.Replacer) string {
	return fmt.Sprintf(managerSystemTemplate, m.Role, r.Replace(m.Backstory), r.Replace(m.Goal))
}

func routingPrompt(t *Task, r *strings.Replacer, candidates []*Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Choose the agent best suited to this task.\n\nTask: %s\nExpected output: %s\n\nCandidates:\n",
		r.Replace(t.Description), r.Replace(t.ExpectedOutput))
	for _, a := range candidates {
		fmt.Fprintf(&b, "- %s: %s\n", a.Role, r.Replace(a.Goal))
	}
	b.WriteString("\nReply with the exact role name of one candidate and nothing else.")
	return b.String()
}

func synthesisPrompt(request string, outputs []priorOutput) string {
	var b strings.Builder
	b.WriteString("Your team has finished its tasks. Combine their work into one complete final answer")
	if request != "" {
		fmt.Fprintf(&b, " for: %s", request)
	}
	b.WriteString(".\n\nTask results:\n")
	writeOutputs(&b, outputs)
	return b.String()
}
