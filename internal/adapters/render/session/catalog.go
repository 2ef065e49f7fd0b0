package session

import (
	"fmt"

	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// RenderCatalog lists every prize a winning play can mint.
func RenderCatalog(catalog domain.Catalog) string {
	s := newStyles()
	lines := []string{
		s.title.Render("GrowScratch Prizes"),
		s.header.Render(fmt.Sprintf("prizes: %d", len(catalog))),
	}
	if len(catalog) == 0 {
		lines = append(lines, s.empty.Render("No prizes configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	rows := make([]string, 0, len(catalog))
	for _, prize := range catalog {
		rows = append(rows, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.key.Render(fmt.Sprintf("%2d", prize.ID)),
			"  ",
			s.detail.Width(26).Render(prize.Name),
			rarityStyle(prize.Rarity).Render(string(prize.Rarity)),
		))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func rarityStyle(rarity domain.Rarity) lipgloss.Style {
	color := "250"
	switch rarity {
	case domain.RarityLegendary:
		color = "214"
	case domain.RarityEpic:
		color = "177"
	case domain.RarityRare:
		color = "39"
	case domain.RarityUncommon:
		color = "114"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}
