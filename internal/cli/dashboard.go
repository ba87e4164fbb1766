package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/lmay/internal/observability"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// Dashboard panel indices.
const (
	panelRuns = iota
	panelMetrics
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	lastValidation *models.RunRecord
	lastDrift      *models.RunRecord
	metricsData    *metricsSnapshot
	alerts         []alertSnapshot

	// State.
	loading bool
	err     error
}

type metricsSnapshot struct {
	validationRuns     int
	validationFailures int
	driftRuns          int
	documentsDeleted   int
	eventCount         int
	topFindings        []findingCount
}

type findingCount struct {
	findingType string
	count       int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	lastValidation *models.RunRecord
	lastDrift      *models.RunRecord
	metrics        *metricsSnapshot
	alerts         []alertSnapshot
	err            error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	statusValid   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusInvalid = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelRuns,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.lastValidation = msg.lastValidation
		m.lastDrift = msg.lastDrift
		m.metricsData = msg.metrics
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" lmay Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	runsPanel := m.renderRunsPanel()
	metricsPanel := m.renderMetricsPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		runsPanel = m.applyPanelStyle(panelRuns, runsPanel, colWidth-4)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, runsPanel, metricsPanel, alertsPanel)
	} else {
		panelWidth := max(availableWidth-4, 20)
		runsPanel = m.applyPanelStyle(panelRuns, runsPanel, panelWidth)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, runsPanel, metricsPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderRunsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Latest runs"))
	b.WriteString("\n")

	if m.lastValidation == nil && m.lastDrift == nil {
		b.WriteString("  No runs recorded.")
		return b.String()
	}

	if v := m.lastValidation; v != nil {
		style := statusValid
		if !v.Valid {
			style = statusInvalid
		}
		b.WriteString(fmt.Sprintf("  %-11s %s\n", "Validation", style.Render(runResult(*v))))
		b.WriteString(fmt.Sprintf("  %-11s %d\n", "Documents", v.Documents))
		b.WriteString(fmt.Sprintf("  %-11s %d\n", "Errors", v.Errors))
		b.WriteString(fmt.Sprintf("  %-11s %d\n", "Warnings", v.Warnings))
		b.WriteString(fmt.Sprintf("  %-11s %s\n", "At", v.StartedAt.Local().Format("2006-01-02 15:04")))
	}
	if d := m.lastDrift; d != nil {
		style := statusValid
		if d.Obsolete > 0 {
			style = statusInvalid
		}
		b.WriteString(fmt.Sprintf("\n  %-11s %s\n", "Drift", style.Render(runResult(*d))))
		b.WriteString(fmt.Sprintf("  %-11s %d\n", "Outdated", d.Outdated))
		b.WriteString(fmt.Sprintf("  %-11s %d\n", "Obsolete", d.Obsolete))
		b.WriteString(fmt.Sprintf("  %-11s %s\n", "At", d.StartedAt.Local().Format("2006-01-02 15:04")))
	}

	return b.String()
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	lines := []struct {
		label string
		value int
	}{
		{"Events", md.eventCount},
		{"Validations", md.validationRuns},
		{"Failed", md.validationFailures},
		{"Drift runs", md.driftRuns},
		{"Deleted", md.documentsDeleted},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	if len(md.topFindings) > 0 {
		b.WriteString("\n  Top findings\n")
		for _, f := range md.topFindings {
			b.WriteString(fmt.Sprintf("  %-26s %d\n", f.findingType, f.count))
		}
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

// topFindingTypes returns the n most frequent finding types, ties broken
// by name.
func topFindingTypes(byType map[string]int, n int) []findingCount {
	out := make([]findingCount, 0, len(byType))
	for t, c := range byType {
		out = append(out, findingCount{findingType: t, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].findingType < out[j].findingType
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func loadData() tea.Msg {
	var result dataLoadedMsg
	ctx := context.Background()

	if Runs != nil {
		var err error
		if result.lastValidation, err = Runs.Latest(ctx, models.RunValidate); err != nil {
			result.err = fmt.Errorf("loading runs: %w", err)
			return result
		}
		if result.lastDrift, err = Runs.Latest(ctx, models.RunDrift); err != nil {
			result.err = fmt.Errorf("loading runs: %w", err)
			return result
		}
	}

	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			validationRuns:     metrics.ValidationRuns,
			validationFailures: metrics.ValidationFailures,
			driftRuns:          metrics.DriftRuns,
			documentsDeleted:   metrics.DocumentsDeleted,
			eventCount:         metrics.EventCount,
			topFindings:        topFindingTypes(metrics.FindingsByType, 5),
		}
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		sortAlerts(alerts)
		result.alerts = make([]alertSnapshot, 0, len(alerts))
		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.UTC().Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

// sortAlerts orders alerts high severity first.
func sortAlerts(alerts []observability.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
	})
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for runs, metrics and alerts",
	Long: `Launch an interactive terminal dashboard showing the latest validation
and drift runs, metrics, and alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
