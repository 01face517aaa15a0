package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/cartolabel/pkg/sink"
)

// List styles
var (
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	listHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	tabActiveStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Underline(true)
	tabStyle        = lipgloss.NewStyle().Foreground(colorGray)
)

// =============================================================================
// LabelsModel - Interactive result browser
// =============================================================================

type labelsTab int

const (
	tabPlaced labelsTab = iota
	tabSkipped
)

// LabelsModel is the bubbletea model of the inspect command. It lists the
// placed labels and the skipped features of a result document.
type LabelsModel struct {
	Doc    *sink.Document
	Tab    labelsTab
	Cursor int
	Offset int
	Height int
}

// NewLabelsModel creates a browser over doc.
func NewLabelsModel(doc *sink.Document) LabelsModel {
	return LabelsModel{Doc: doc, Height: 15}
}

func (m LabelsModel) Init() tea.Cmd {
	return nil
}

func (m LabelsModel) rows() int {
	if m.Tab == tabSkipped {
		return len(m.Doc.Skipped)
	}
	return len(m.Doc.Labels)
}

func (m LabelsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "left", "right", "h", "l":
			m.Tab = 1 - m.Tab
			m.Cursor, m.Offset = 0, 0
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < m.rows()-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		case "end", "G":
			if n := m.rows(); n > 0 {
				m.Cursor = n - 1
				m.Offset = max(0, n-m.Height)
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(5, msg.Height-10)
	}
	return m, nil
}

func (m LabelsModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Label Placement"))
	if m.Doc.RunID != "" {
		b.WriteString(listDimStyle.Render("  run " + m.Doc.RunID))
	}
	b.WriteString("\n")
	b.WriteString(statsLine(m.Doc.Stats, false))
	b.WriteString("\n\n")

	placed := fmt.Sprintf("Placed (%d)", len(m.Doc.Labels))
	skipped := fmt.Sprintf("Skipped (%d)", len(m.Doc.Skipped))
	if m.Tab == tabPlaced {
		b.WriteString(tabActiveStyle.Render(placed) + "   " + tabStyle.Render(skipped))
	} else {
		b.WriteString(tabStyle.Render(placed) + "   " + tabActiveStyle.Render(skipped))
	}
	b.WriteString("\n")

	headers, rows := m.page()
	if len(rows) == 0 {
		b.WriteString("\n" + listDimStyle.Render("  nothing to show") + "\n")
	} else {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == -1 {
					return listHeaderStyle
				}
				if m.Offset+row == m.Cursor {
					return lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
				}
				if m.Tab == tabSkipped {
					return lipgloss.NewStyle().Foreground(colorYellow)
				}
				return lipgloss.NewStyle().Foreground(colorWhite)
			})
		b.WriteString(t.Render())
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, m.rows())))
	}
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  tab switch  q quit"))
	return b.String()
}

// page returns the table headers and the visible rows.
func (m LabelsModel) page() ([]string, [][]string) {
	end := min(m.Offset+m.Height, m.rows())
	var rows [][]string
	if m.Tab == tabSkipped {
		for _, s := range m.Doc.Skipped[m.Offset:end] {
			rows = append(rows, []string{s.FeatureID, orDash(s.Text), string(s.Reason)})
		}
		return []string{"Feature", "Text", "Reason"}, rows
	}
	for _, l := range m.Doc.Labels[m.Offset:end] {
		rows = append(rows, []string{
			l.FeatureID,
			l.Text,
			fmt.Sprintf("%.2f, %.2f", l.X, l.Y),
			fmt.Sprintf("%.1f°", l.Rotation),
			string(l.Align),
			fmt.Sprintf("%.2f × %.2f", l.Width, l.Height),
		})
	}
	return []string{"Feature", "Text", "Anchor", "Rotation", "Align", "Size"}, rows
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
