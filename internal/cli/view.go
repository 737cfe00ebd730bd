package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/forest/render"
	"github.com/matzehuels/forestplot/pkg/forest/sink"
	fpio "github.com/matzehuels/forestplot/pkg/io"
	"github.com/matzehuels/forestplot/pkg/pipeline"
	ftable "github.com/matzehuels/forestplot/pkg/table"
)

var (
	viewStatusStyle = lipgloss.NewStyle().Foreground(colorYellow)
	viewPlotStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// viewCommand browses effect rows in an interactive table.
func (c *CLI) viewCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "view [rows.json]",
		Short: "Browse effect rows interactively",
		Example: `  forestplot view rows.json
  forestplot view --run 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				rows []effect.Row
				err  error
			)
			switch {
			case runID != "":
				rows, err = c.runRows(ctx, runID)
			case len(args) == 1:
				rows, err = fpio.ImportRows(args[0])
			default:
				return fmt.Errorf("give a rows file or --run")
			}
			if err != nil {
				return err
			}

			plot, err := c.plotPreview(ctx, rows)
			if err != nil {
				c.Logger.Warn("plot preview unavailable", "err", err)
			}
			_, err = tea.NewProgram(newViewModel(rows, plot), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "view an archived run")
	return cmd
}

func (c *CLI) runRows(ctx context.Context, id string) ([]effect.Row, error) {
	st, err := c.openStore(ctx, "")
	if err != nil {
		return nil, err
	}
	defer st.Close()
	run, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return run.Rows, nil
}

// plotPreview rasterizes the plot onto a character grid.
func (c *CLI) plotPreview(ctx context.Context, rows []effect.Row) (string, error) {
	runner := pipeline.NewRunner(nil, nil, c.Logger)
	t, g, err := runner.LayoutRows(ctx, rows, pipeline.Options{})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	dev := sink.NewTextDevice(&buf)
	if _, err := render.Render(t, g, render.DefaultOptions(dev)); err != nil {
		return "", err
	}
	if err := dev.Flush(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// viewModel is the bubbletea model of the view command.
type viewModel struct {
	table    table.Model
	rows     []effect.Row
	plot     string
	showPlot bool
	detail   bool
}

var viewColumns = []table.Column{
	{Title: "Biomarker", Width: 14},
	{Title: "Subgroup", Width: 14},
	{Title: "Level", Width: 14},
	{Title: "N", Width: 5},
	{Title: "Events", Width: 6},
	{Title: "Estimate (CI)", Width: 22},
	{Title: "p", Width: 7},
	{Title: "Status", Width: 14},
}

func newViewModel(rows []effect.Row, plot string) viewModel {
	f := ftable.DefaultFormat()
	trs := make([]table.Row, len(rows))
	for i, r := range rows {
		name, group := r.BiomarkerLabel, r.VarLabel
		if name == "" {
			name = r.Biomarker
		}
		if group == "" {
			group = r.Var
		}
		trs[i] = table.Row{
			name,
			group,
			r.Label,
			f.Count(r.NTotal),
			f.Count(r.NEvent),
			f.EstimateCI(r.Estimate, r.Lower, r.Upper),
			f.PValue(r.PValue),
			string(r.Status),
		}
	}

	t := table.New(
		table.WithColumns(viewColumns),
		table.WithRows(trs),
		table.WithFocused(true),
		table.WithHeight(min(len(trs)+1, 15)),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDim).BorderBottom(true).Bold(true).Foreground(colorCyan)
	s.Selected = s.Selected.Foreground(colorWhite).Background(lipgloss.Color("24")).Bold(false)
	t.SetStyles(s)

	return viewModel{table: t, rows: rows, plot: plot}
}

func (m viewModel) Init() tea.Cmd { return nil }

func (m viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "p":
			m.showPlot = !m.showPlot
			return m, nil
		case "enter":
			m.detail = !m.detail
			return m, nil
		}
	case tea.WindowSizeMsg:
		h := msg.Height - 8
		if m.showPlot {
			h -= strings.Count(m.plot, "\n") + 3
		}
		m.table.SetHeight(max(h, 3))
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m viewModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Effect rows"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("↑/↓ navigate  ⏎ details  p plot  q quit"))
	b.WriteString("\n\n")

	if m.showPlot && m.plot != "" {
		b.WriteString(viewPlotStyle.Render(m.plot))
		b.WriteString("\n")
	}
	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.detail && len(m.rows) > 0 {
		r := m.rows[m.table.Cursor()]
		line := fmt.Sprintf("%s · %s · n=%d", r.Biomarker, subgroupLabel(r), r.NTotal)
		if r.Recovered() {
			line += " · " + viewStatusStyle.Render(fmt.Sprintf("%s: %s", r.Status, r.Detail))
		}
		b.WriteString(StyleDim.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
