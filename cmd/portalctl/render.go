package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/stats"
	"github.com/spec-kit/service-portal/internal/status"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

type column struct {
	title string
	width int
}

var listColumns = []column{
	{"ID", 14},
	{"STATUS", 13},
	{"CATEGORY", 17},
	{"TITLE", 32},
	{"OUTLET", 20},
	{"VISIT", 17},
}

const timeLayout = "2006-01-02 15:04"

func statusBadge(s domain.Status) string {
	p := status.Present(s)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(p.Color)).Render(p.Label)
}

func cell(text string, width int) string {
	return lipgloss.NewStyle().Width(width).MaxWidth(width).Render(truncate(text, width-1))
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

func writeEntities(w io.Writer, entities []domain.Entity, loc *time.Location) {
	var header strings.Builder
	for _, col := range listColumns {
		header.WriteString(cell(col.title, col.width))
	}
	fmt.Fprintln(w, headerStyle.Render(header.String()))

	for _, e := range entities {
		visit := "-"
		if e.AssignedVisitAt != nil {
			visit = e.AssignedVisitAt.In(loc).Format(timeLayout)
		}
		values := []string{e.DisplayID, "", string(e.Category), e.Title, e.OutletName, visit}
		var row strings.Builder
		for i, col := range listColumns {
			if i == 1 {
				row.WriteString(lipgloss.NewStyle().Width(col.width).Render(statusBadge(e.Status)))
				continue
			}
			row.WriteString(cell(values[i], col.width))
		}
		fmt.Fprintln(w, row.String())
	}
}

func writeStats(w io.Writer, kind domain.Kind, counts stats.Counts) {
	terminal := domain.StatusClosed
	if kind == domain.KindServiceRequest {
		terminal = domain.StatusCompleted
	}
	line := fmt.Sprintf("total %d  %s %d  %s %d  %s %d",
		counts.Total,
		statusBadge(domain.StatusNew), counts.New,
		statusBadge(domain.StatusInProgress), counts.InProgress,
		statusBadge(terminal), counts.ClosedOrCompleted)
	if counts.Unknown > 0 {
		line += fmt.Sprintf("  unknown %d", counts.Unknown)
	}
	fmt.Fprintln(w, line)
}

func writeDetail(w io.Writer, e domain.Entity, loc *time.Location, attachmentURL func(string) string) {
	fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(e.DisplayID), statusBadge(e.Status))
	fmt.Fprintf(w, "%s: %s\n", e.Category, e.Title)
	if e.Description != "" {
		fmt.Fprintln(w, e.Description)
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s, %s (filed by %s on %s)",
		e.OutletName, e.Address, e.Owner.Name, e.CreatedAt.In(loc).Format(timeLayout))))
	if e.AssignedVisitAt != nil {
		fmt.Fprintf(w, "visit: %s\n", e.AssignedVisitAt.In(loc).Format(timeLayout))
	}
	for _, img := range e.Images {
		fmt.Fprintf(w, "image: %s\n", attachmentURL(img))
	}

	for _, entry := range e.Timeline {
		fmt.Fprintln(w)
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s · %s", entry.AddedBy, entry.AddedAt.In(loc).Format(timeLayout))))
		fmt.Fprintln(w, entry.Note)
		for _, item := range entry.PriceList {
			fmt.Fprintf(w, "  %d. %-30s %10.2f\n", item.SNo, item.Description, item.Price)
		}
		if entry.TotalPrice != nil {
			fmt.Fprintf(w, "  total %.2f\n", *entry.TotalPrice)
		}
		for _, img := range entry.Images {
			fmt.Fprintf(w, "  image: %s\n", attachmentURL(img))
		}
	}
}

// parsePriceItems reads quotation lines given as "description=price".
func parsePriceItems(values []string) ([]domain.PriceItem, error) {
	items := make([]domain.PriceItem, 0, len(values))
	for i, raw := range values {
		idx := strings.LastIndex(raw, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("price %q: want description=amount", raw)
		}
		description := strings.TrimSpace(raw[:idx])
		price, err := strconv.ParseFloat(strings.TrimSpace(raw[idx+1:]), 64)
		if err != nil || description == "" {
			return nil, fmt.Errorf("price %q: want description=amount", raw)
		}
		items = append(items, domain.PriceItem{SNo: i + 1, Description: description, Price: price})
	}
	return items, nil
}

func readUploads(paths []string) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		uploads = append(uploads, domain.Upload{FileName: filepath.Base(path), Data: data})
	}
	return uploads, nil
}
