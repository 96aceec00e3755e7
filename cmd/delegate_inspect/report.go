// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/delegate"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case withHeader && row == lgtable.HeaderRow:
				return headerRowStyle
			case row%2 == 0:
				s = evenRowStyle
			default:
				s = oddRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			}
			return
		})
}

// reportLowering prints a summary of the lowering of g, which had numNodes nodes before.
func reportLowering(g *fx.Graph, numNodes int, lowered []*delegate.LoweredModule) {
	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable(false)
	table.Row("graph", g.Name())
	table.Row("# nodes before", humanize.Comma(int64(numNodes)))
	table.Row("# nodes after", humanize.Comma(int64(g.Len())))
	table.Row("# lowered modules", humanize.Comma(int64(len(lowered))))
	table.Row("# nodes not lowered", humanize.Comma(int64(len(delegate.NonLoweredNodes(g)))))
	fmt.Println(table.Render())
	if len(lowered) == 0 {
		return
	}

	fmt.Println(titleStyle.Render("Lowered modules"))
	table = newPlainTable(true)
	table.Headers("#", "Backend", "Tag", "Id", "Nodes", "Size", "Debug entries")
	for ii, module := range lowered {
		table.Row(
			fmt.Sprintf("%d", ii),
			module.BackendID,
			module.Tag,
			module.ID.String(),
			humanize.Comma(int64(module.Original.Len())),
			humanize.Bytes(uint64(len(module.ProcessedBytes))),
			humanize.Comma(int64(len(module.DebugHandleMap))),
		)
	}
	fmt.Println(table.Render())
}

func reportBackends() {
	fmt.Println(titleStyle.Render("Backends"))
	table := newPlainTable(true)
	table.Headers("Id", "Type")
	for _, id := range delegate.RegisteredBackends() {
		backend, _ := delegate.GetBackend(id)
		table.Row(id, fmt.Sprintf("%T", backend))
	}
	fmt.Println(table.Render())
}
