package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sessionctl/internal/chain"
	"sessionctl/internal/project"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

func renderOK(msg string) string {
	return okStyle.Render("✓ ") + msg
}

func renderError(msg string) string {
	return errStyle.Render("✗ ") + msg
}

func renderReport(report chain.Report) string {
	if report.Valid {
		return renderOK("log is valid") + "\n"
	}
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%d finding(s)", len(report.Findings))) + "\n")
	for _, f := range report.Findings {
		detail := ""
		switch f.Type {
		case chain.FindingOrphanParent:
			detail = "parent " + f.Parent
		case chain.FindingOrphanToolResult:
			detail = "tool_use " + f.Parent
		case chain.FindingUnwantedProgress:
			detail = "event " + f.Event
		}
		line := fmt.Sprintf("  line %-5d %-20s %s", f.Line, f.Type, f.UUID)
		if detail != "" {
			line += "  " + mutedStyle.Render(detail)
		}
		sb.WriteString(errStyle.Render("✗") + line + "\n")
	}
	return sb.String()
}

func renderSessions(infos []project.SessionInfo) string {
	if len(infos) == 0 {
		return mutedStyle.Render("no sessions") + "\n"
	}
	var sb strings.Builder
	for _, info := range infos {
		status := okStyle.Render("ok")
		if info.Findings > 0 {
			status = errStyle.Render(fmt.Sprintf("%d findings", info.Findings))
		}
		when := ""
		if !info.LastActivity.IsZero() {
			when = info.LastActivity.Format("2006-01-02 15:04")
		}
		sb.WriteString(fmt.Sprintf("%-38s %5d records  %-16s %s\n",
			info.SessionID, info.Records, when, status))
		if info.Summary != "" {
			sb.WriteString(mutedStyle.Render("  "+info.Summary) + "\n")
		}
	}
	return sb.String()
}

func renderSummaries(buckets map[string][]project.ResolvedSummary) string {
	if len(buckets) == 0 {
		return mutedStyle.Render("no summaries resolved") + "\n"
	}
	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		cur, ok := project.CurrentSummary(buckets[id])
		if !ok {
			continue
		}
		sb.WriteString(headerStyle.Render(id) + "\n")
		sb.WriteString("  " + cur.Text + "\n")
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  from %s, %d candidate(s)",
			cur.SourceSession, len(buckets[id]))) + "\n")
	}
	return sb.String()
}

func renderOrphans(orphans []project.Orphan) string {
	if len(orphans) == 0 {
		return okStyle.Render("✓ ") + "no orphans\n"
	}
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%d orphan(s)", len(orphans))) + "\n")
	for _, o := range orphans {
		extra := ""
		if o.Kind == project.OrphanSidechain {
			extra = fmt.Sprintf(" (%d lines)", o.Lines)
		}
		sb.WriteString(fmt.Sprintf("  %-10s %s%s\n", o.Kind, o.Path,
			mutedStyle.Render(extra)))
	}
	return sb.String()
}
