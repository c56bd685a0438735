// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/TwiN/go-color"
	"github.com/spf13/cobra"

	"github.com/gabriel-samfira/techdesk/categories"
	"github.com/gabriel-samfira/techdesk/params"
)

var csvFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import machine guide entries from a csv file",
	Long: `Import machine guide entries from a csv file.

Columns are title, problem, solution and tags. Tags are separated by ";"
and are created when missing. A leading header row is skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if csvFile == "" {
			return fmt.Errorf("csv file not specified")
		}
		ctx, stop := signal.NotifyContext(context.Background(), signals...)
		defer stop()

		fd, err := os.Open(csvFile)
		if err != nil {
			return fmt.Errorf("failed to open csv file: %w", err)
		}
		defer fd.Close()

		rows, err := readGuideCSV(fd)
		if err != nil {
			return err
		}

		db, _, _, cleanup, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		imported, err := db.ImportGuideEntries(ctx, rows, categories.PaletteColor)
		if err != nil {
			return fmt.Errorf("failed to import entries: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.Ize(color.Green, fmt.Sprintf("imported %d entries", imported)))
		return nil
	},
}

// readGuideCSV parses title,problem,solution,tags records. Rows without a
// title are rejected with their line number.
func readGuideCSV(r io.Reader) ([]params.GuideImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []params.GuideImportRow
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if line == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "title") {
			continue
		}

		field := func(idx int) string {
			if idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}
		row := params.GuideImportRow{
			Title:    field(0),
			Problem:  field(1),
			Solution: field(2),
		}
		if row.Title == "" {
			return nil, fmt.Errorf("line %d: missing title", line)
		}
		for _, tag := range strings.Split(field(3), ";") {
			if tag = strings.TrimSpace(tag); tag != "" {
				row.TagNames = append(row.TagNames, tag)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func init() {
	importCmd.Flags().StringVarP(&csvFile, "csv-file", "f", "", "CSV file to import from")

	rootCmd.AddCommand(importCmd)
}
