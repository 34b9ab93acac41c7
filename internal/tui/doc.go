// Package tui renders dyncrew's terminal output.
//
// Two surfaces are provided:
//
//   - RenderDesign draws a team design (agents, their tools, the task list
//     and the process mode) as a static lipgloss block. The design and run
//     commands print it before or instead of executing.
//
//   - RunApp is a bubbletea model that follows a run live. The caller
//     starts it with NewRunProgram, forwards crew events through
//     Forwarder, and finishes it with a DoneMsg:
//
//	p, app := tui.NewRunProgram(prompt)
//	fwd := tui.NewForwarder(p)
//	go func() {
//		res, err := sys.Run(crew.WithObserver(ctx, fwd.Observe), prompt, inputs)
//		p.Send(tui.DoneMsg{Result: res, Err: err})
//	}()
//	_, err := p.Run()
//
// The model never calls back into the system. A user who quits early is
// reported through app.Cancelled once the program exits, and the caller
// cancels the run's context.
package tui
