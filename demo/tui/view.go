package tui

import (
	"fmt"
	"strings"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	title := TextTitle
	if m.username != "" {
		title += " · " + m.username
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	if state := m.getStateText(); state != "" {
		b.WriteString(state)
		b.WriteString("\n\n")
	}

	if m.Screen == ScreenDetail && m.Detail != nil {
		b.WriteString(BoxStyle.Render(m.formatDetail(*m.Detail)))
		b.WriteString("\n\n")
		b.WriteString(InfoStyle.Render(TextFooterDetail))
		return b.String()
	}

	if len(m.Articles) == 0 && !m.Loading {
		b.WriteString(InfoStyle.Render(TextEmpty))
		b.WriteString("\n\n")
	}
	for i, a := range m.Articles {
		b.WriteString(m.formatArticleRow(i, a))
		b.WriteString("\n")
	}

	pager := fmt.Sprintf("Page %d of %d · %d articles", m.Page, max(m.TotalPages(), 1), m.Count)
	if m.Stale {
		pager += " " + TextStaleIndicator
	}
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(pager))
	b.WriteString("\n")
	if m.username == "" {
		b.WriteString(InfoStyle.Render(TextSignedOut))
		b.WriteString("\n")
	}
	b.WriteString(InfoStyle.Render(TextFooterList))
	return b.String()
}
