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

// Package export renders the machine guide as a spreadsheet.
package export

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/xuri/excelize/v2"

	"github.com/gabriel-samfira/techdesk/params"
)

const (
	SheetName = "Machine Guide"
	// ContentType is the MIME type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var columns = []struct {
	title string
	width float64
}{
	{title: "Title", width: 30},
	{title: "Solution", width: 50},
	{title: "Tags", width: 20},
}

var stripPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// StripHTML turns rich text into plain text with collapsed whitespace.
func StripHTML(s string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// FileName returns the download name of an export made at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("machine-guide-%s.xlsx", t.Format("2006-01-02"))
}

func tagNames(tags []params.Category) string {
	names := make([]string, len(tags))
	for idx, tag := range tags {
		names[idx] = tag.Name
	}
	return strings.Join(names, ", ")
}

// WriteGuide writes entries as an xlsx workbook to w.
func WriteGuide(w io.Writer, entries []params.GuideEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), SheetName)

	for idx, col := range columns {
		colName, err := excelize.ColumnNumberToName(idx + 1)
		if err != nil {
			return fmt.Errorf("resolving column: %w", err)
		}
		if err := f.SetColWidth(SheetName, colName, colName, col.width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
		if err := f.SetCellValue(SheetName, colName+"1", col.title); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for idx, entry := range entries {
		row := []interface{}{
			StripHTML(entry.Title),
			StripHTML(entry.Solution),
			tagNames(entry.Tags),
		}
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return fmt.Errorf("resolving cell: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", idx+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
