package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/gen"
)

// Console prints a run summary for a terminal.
type Console struct {
	Out io.Writer
	// Verbosity 0 prints failures only; 1 adds warnings; 2 adds info.
	Verbosity int
}

// NewConsole creates a console printer.
func NewConsole(out io.Writer, verbosity int) *Console {
	return &Console{Out: out, Verbosity: verbosity}
}

func (c *Console) shown(d diag.Diagnostic) bool {
	switch {
	case d.Fatal || d.Severity >= diag.SevError:
		return true
	case d.Severity == diag.SevWarning:
		return c.Verbosity >= 1
	}
	return c.Verbosity >= 2
}

func statusText(u Unit) string {
	switch {
	case u.OK():
		return pterm.Green(u.Status)
	case u.Status == gen.StatusSkipped.String():
		return pterm.Yellow(u.Status)
	}
	return pterm.Red(u.Status)
}

// Print renders the per-unit table, the diagnostics worth showing and a
// closing line.
func (c *Console) Print(r *Report) error {
	data := pterm.TableData{{"Unit", "Status", "Decls", "Files", "Changed", "Errors", "Warnings", "Time"}}
	for _, u := range r.Units {
		data = append(data, []string{
			u.Namespace,
			statusText(u),
			strconv.Itoa(u.Decls),
			strconv.Itoa(len(u.Artifacts)),
			strconv.Itoa(u.Changed()),
			strconv.Itoa(u.Errors),
			strconv.Itoa(u.Warnings),
			fmt.Sprintf("%dms", u.DurationMS),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, table)

	for _, u := range r.Units {
		for _, d := range u.Diagnostics {
			if !c.shown(d) {
				continue
			}
			line := fmt.Sprintf("[%s] %s", u.Namespace, d.String())
			switch {
			case d.Fatal || d.Severity >= diag.SevError:
				fmt.Fprint(c.Out, pterm.Error.Sprintln(line))
			case d.Severity == diag.SevWarning:
				fmt.Fprint(c.Out, pterm.Warning.Sprintln(line))
			default:
				fmt.Fprint(c.Out, pterm.Info.Sprintln(line))
			}
		}
	}

	if failed := r.Failed(); failed > 0 {
		fmt.Fprint(c.Out, pterm.Error.Sprintf("%d of %d units failed\n", failed, len(r.Units)))
		return nil
	}
	fmt.Fprint(c.Out, pterm.Success.Sprintf("Generated %d units in %s\n", len(r.Units), r.Duration().Round(time.Millisecond)))
	return nil
}
