package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"Distributor/internal/manifest"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8F98")).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")).Bold(true)
	newStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149")).Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func renderReport(url string, current int, v manifest.Version) string {
	status := okStyle.Render("up to date")
	if v.NewerThan(current) {
		status = newStyle.Render("update available")
	}
	lines := []string{
		titleStyle.Render("Distributor manifest"),
		row("manifest", url),
		row("installed", fmt.Sprintf("%d", current)),
		row("latest", fmt.Sprintf("%d (%s)", v.Code, v.Name)),
		row("package", v.DownloadURL),
		row("status", status),
	}
	if notes := strings.TrimSpace(v.ReleaseNotes); notes != "" {
		lines = append(lines, "", titleStyle.Render("What's new"), renderNotes(notes))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderFailure(url string, err error) string {
	return boxStyle.Render(strings.Join([]string{
		titleStyle.Render("Distributor manifest"),
		row("manifest", url),
		row("status", errStyle.Render("check failed")),
		row("error", err.Error()),
	}, "\n"))
}

// renderNotes formats markdown release notes for the terminal, falling back
// to the raw text.
func renderNotes(notes string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(72))
	if err != nil {
		return notes
	}
	out, err := r.Render(notes)
	if err != nil {
		return notes
	}
	return strings.TrimSpace(out)
}
