package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/lmay/pkg/models"
)

var (
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// painter applies styles only when colour is enabled.
type painter bool

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p {
		return text
	}
	return s.Render(text)
}

func renderText(w io.Writer, res *models.ValidationResult, meta Meta) error {
	p := painter(meta.Color)
	var b strings.Builder

	status := p.paint(passStyle, "PASSED")
	if !res.Valid {
		status = p.paint(failStyle, "FAILED")
	}
	fmt.Fprintf(&b, "Validation %s: %d document(s), %d error(s), %d warning(s)\n",
		status, res.Documents, res.Summary.Total.Errors, res.Summary.Total.Warnings)

	for _, validator := range validatorOrder(res) {
		counts := res.Summary.PerValidator[validator]
		fmt.Fprintf(&b, "\n%s (%d error(s), %d warning(s))\n",
			p.paint(headerStyle, validator), counts.Errors, counts.Warnings)
		for _, f := range res.All() {
			if f.Validator != validator {
				continue
			}
			writeFindingLine(&b, p, f)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeFindingLine(b *strings.Builder, p painter, f models.Finding) {
	label := p.paint(warningStyle, "WARN ")
	if f.Severity == models.SeverityError {
		label = p.paint(errorStyle, "ERROR")
	}
	fmt.Fprintf(b, "  %s %s %s: %s\n", label, location(f), f.Type, f.Message)
	if len(f.Cycle) > 0 {
		fmt.Fprintf(b, "        cycle: %s\n", strings.Join(f.Cycle, " -> "))
	}
	if f.Suggestion != "" {
		fmt.Fprintf(b, "        %s\n", p.paint(hintStyle, "hint: "+f.Suggestion))
	}
}

// location formats file, pointer and position as file[:line[:col]][#path].
func location(f models.Finding) string {
	loc := f.File
	if loc == "" {
		loc = "-"
	}
	if f.Line > 0 {
		loc += fmt.Sprintf(":%d", f.Line)
		if f.Column > 0 {
			loc += fmt.Sprintf(":%d", f.Column)
		}
	}
	if f.Path != "" {
		loc += "#" + f.Path
	}
	return loc
}

func renderDriftText(w io.Writer, rep *models.ObsolescenceReport, meta Meta) error {
	p := painter(meta.Color)
	var b strings.Builder

	fmt.Fprintf(&b, "Drift analysis: %d document(s), %d valid, %d outdated, %d obsolete\n",
		rep.Total(), len(rep.Valid), len(rep.Outdated), len(rep.Obsolete))

	sections := []struct {
		title    string
		style    lipgloss.Style
		verdicts []models.Verdict
	}{
		{"obsolete", errorStyle, rep.Obsolete},
		{"outdated", warningStyle, rep.Outdated},
	}
	for _, s := range sections {
		if len(s.verdicts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", p.paint(headerStyle, s.title))
		for _, v := range s.verdicts {
			fmt.Fprintf(&b, "  %s %s (%d days)", p.paint(s.style, strings.ToUpper(string(v.Status))), v.Path, v.AgeDays)
			if v.Reason != "" {
				fmt.Fprintf(&b, ": %s", v.Reason)
			}
			b.WriteString("\n")
			if len(v.Missing) > 0 {
				fmt.Fprintf(&b, "        missing: %s\n", strings.Join(v.Missing, ", "))
			}
		}
	}

	if len(rep.Deleted) > 0 {
		verb := "Deleted"
		if rep.DryRun {
			verb = "Would delete"
		}
		fmt.Fprintf(&b, "\n%s %d document(s):\n", verb, len(rep.Deleted))
		for _, path := range rep.Deleted {
			fmt.Fprintf(&b, "  %s\n", path)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
