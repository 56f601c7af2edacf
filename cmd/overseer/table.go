package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/arloliu/go-overseer/xena"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderDirectory renders one row per port: PORT, LOCK and the ACTION a toggle would take.
func renderDirectory(dir xena.Interfaces, colorize bool) string {
	entries := dir.Entries()
	rows := make([][]string, 0, len(entries))
	for _, p := range entries {
		action := "-"
		if verb, err := p.State.Lock.Action(); err == nil {
			action = verb.Label()
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d/%d", p.Module, p.Port),
			lockLabel(p.State.Lock, colorize),
			action,
		})
	}

	return renderTable([]string{"PORT", "LOCK", "ACTION"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
}

func lockLabel(lock xena.Lock, colorize bool) string {
	label := lock.String()
	if !colorize {
		return label
	}

	switch lock {
	case xena.Released:
		return ansiGreen + label + ansiReset
	case xena.ReservedByYou:
		return ansiYellow + label + ansiReset
	default:
		return ansiRed + label + ansiReset
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
