// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package subcommands

import (
	"fmt"
	"io"
	"strings"
)

type TableWriter struct {
	headers []string
	rows    [][]string
}

func NewTableWriter(headers []string) *TableWriter {
	return &TableWriter{
		headers: headers,
		rows:    make([][]string, 0),
	}
}

func (t *TableWriter) AddRow(columns ...any) {
	strColumns := make([]string, len(columns))
	for i, col := range columns {
		strColumns[i] = fmt.Sprintf("%v", col)
	}
	t.rows = append(t.rows, strColumns)
}

func (t *TableWriter) Render(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	colWidths := make([]int, len(t.headers))
	for i, header := range t.headers {
		colWidths[i] = len(header)
	}

	// Multiline cells count their widest line
	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(colWidths) {
				break
			}
			for line := range strings.SplitSeq(cell, "\n") {
				if len(line) > colWidths[i] {
					colWidths[i] = len(line)
				}
			}
		}
	}

	// Header, then rows
	for i, header := range t.headers {
		fmt.Fprint(w, header)
		if i < len(t.headers)-1 {
			padding := colWidths[i] - len(header) + 2
			fmt.Fprint(w, strings.Repeat(" ", padding))
		}
	}
	fmt.Fprintln(w)

	for _, columns := range t.rows {
		cellLines := make([][]string, len(columns))
		maxLines := 0
		for i, cell := range columns {
			cellLines[i] = strings.Split(cell, "\n")
			if len(cellLines[i]) > maxLines {
				maxLines = len(cellLines[i])
			}
		}

		for lineNum := 0; lineNum < maxLines; lineNum++ {
			for colNum := 0; colNum < len(t.headers); colNum++ {
				var content string
				if colNum < len(cellLines) && lineNum < len(cellLines[colNum]) {
					content = cellLines[colNum][lineNum]
				}

				fmt.Fprint(w, content)
				if colNum < len(t.headers)-1 {
					padding := colWidths[colNum] - len(content) + 2
					fmt.Fprint(w, strings.Repeat(" ", padding))
				}
			}
			fmt.Fprintln(w)
		}
	}
}
