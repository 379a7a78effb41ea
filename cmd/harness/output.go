package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/storage/models"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorWarn   = lipgloss.Color("#F4D03F")
	colorError  = lipgloss.Color("#E74C3C")
	colorMuted  = lipgloss.Color("#5C6A72")
)

var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Warning: lipgloss.NewStyle().Foreground(colorWarn),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return styles.Cell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func experimentRows(summaries []models.ExperimentSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			strconv.FormatInt(s.ExperimentID, 10),
			s.Name,
			s.Strategy.String(),
			strconv.Itoa(s.TotalTests),
			strconv.Itoa(s.HallucinationsDetected),
			s.HallucinationRate,
			s.CreatedAt.Format(time.DateTime),
		})
	}
	return rows
}

func resultRows(results []models.ResultRow, width int) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		flag := "no"
		if r.IsHallucination {
			flag = fmt.Sprintf("yes (%s/%s)", r.HallucinationType, r.Severity)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ExperimentID, 10),
			r.Strategy.String(),
			clip(r.PromptText, width),
			clip(r.ResponseText, width),
			flag,
			fmt.Sprintf("%.0f", r.ResponseTimeMS),
		})
	}
	return rows
}

func statisticsRows(stats *models.Statistics) [][]string {
	rows := make([][]string, 0, len(stats.ByStrategy))
	for _, s := range stats.ByStrategy {
		rows = append(rows, []string{
			s.Strategy.String(),
			strconv.Itoa(s.TotalTests),
			strconv.Itoa(s.Hallucinations),
			s.HallucinationRate,
		})
	}
	return rows
}

func vectorRows(vectors []catalog.Vector, width int) [][]string {
	rows := make([][]string, 0, len(vectors))
	for _, v := range vectors {
		expected := "-"
		if v.ExpectedHallucination != nil {
			expected = strconv.FormatBool(*v.ExpectedHallucination)
		}
		rows = append(rows, []string{
			string(v.Class),
			v.Category,
			expected,
			clip(v.Prompt, width),
		})
	}
	return rows
}

// clip flattens whitespace and shortens s to at most width runes, marking
// the cut with "...".
func clip(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
