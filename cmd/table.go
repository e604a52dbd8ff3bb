// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "List the configured poll table",
	Long: `Print the poll table in polling order with the request frame sent for
each entry. When entries share a device and command, only the last one
receives responses; the earlier ones are marked as shadowed.`,
	Args: cobra.NoArgs,
	RunE: runTable,
}

func init() {
	rootCmd.AddCommand(tableCmd)
}

func runTable(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := rainbow.BuildTable(cfg.Entries(), cfg.StationAddress())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Station %03X, %d entries\n", table.Station(), table.Len())
	renderTable(out, table)
	return nil
}

func renderTable(w io.Writer, table *rainbow.Table) {
	last := make(map[rainbow.ResponseKey]int, table.Len())
	for i := 0; i < table.Len(); i++ {
		last[table.Entry(i).Key()] = i
	}

	tw := tablewriter.NewWriter(w)
	tw.SetAutoWrapText(false)
	tw.SetHeader([]string{"#", "Name", "Device", "Command", "Request", "Metadata"})

	for i := 0; i < table.Len(); i++ {
		e := table.Entry(i)
		name := e.Label()
		if last[e.Key()] != i {
			name += " (shadowed)"
		}
		tw.Append([]string{
			fmt.Sprintf("%d", i),
			name,
			fmt.Sprintf("%03X", e.Device),
			fmt.Sprintf("%03X", e.Command),
			rainbow.Sanitize(table.Request(i)),
			formatMetadata(e.Metadata),
		})
	}
	tw.Render()
}

func formatMetadata(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, md[k]))
	}
	return strings.Join(parts, " ")
}
