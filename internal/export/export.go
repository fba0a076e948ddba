// Package export renders the responses of a form as an xlsx workbook.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"formsapi/internal/formschema"
	"formsapi/internal/logger"
	"formsapi/internal/model"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	SheetName   = "Form Responses"
	TimeLayout  = "2006-01-02 15:04:05"
)

// ErrEmptyResponseSet is returned when there is nothing to export.
var ErrEmptyResponseSet = errors.New("no responses to export")

// maxSheetLinks caps the hyperlinks written to one sheet; excelize rejects
// the whole sheet past its own limit. Later file references stay plain text.
var maxSheetLinks = excelize.TotalSheetHyperlinks

// Cell is a rendered value. A cell with a Link is written as a hyperlink
// whose display text is Text.
type Cell struct {
	Text string
	Link string
}

// Table is the tabular form of an export, before serialization.
type Table struct {
	Header []string
	Rows   [][]Cell
}

// Header returns the header row for a schema: the three submission columns
// followed by the field names in declared order.
func Header(s model.Schema) []string {
	h := make([]string, 0, 3+len(s.Fields))
	h = append(h, "Submission ID", "User Email", "Submitted At")
	for _, f := range s.Fields {
		h = append(h, f.Name)
	}
	return h
}

// Build lays out responses, in the order given, under the header of form.
func Build(form *model.Form, responses []model.Response) (*Table, error) {
	if len(responses) == 0 {
		return nil, ErrEmptyResponseSet
	}

	t := &Table{Header: Header(form.Schema), Rows: make([][]Cell, 0, len(responses))}
	for _, r := range responses {
		row := make([]Cell, 0, len(t.Header))
		row = append(row,
			Cell{Text: r.ID},
			Cell{Text: r.UserEmail},
			Cell{Text: r.SubmittedAt.Format(TimeLayout)},
		)
		for _, f := range form.Schema.Fields {
			v, ok := r.Data[f.Name]
			if !ok || formschema.Blank(v) {
				row = append(row, Cell{})
				continue
			}
			if f.Type == model.FieldFile {
				ref := formschema.Text(v)
				row = append(row, Cell{Text: ref, Link: ref})
				continue
			}
			row = append(row, Cell{Text: display(v)})
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Render builds the table for responses and serializes it as xlsx.
func Render(form *model.Form, responses []model.Response) ([]byte, error) {
	t, err := Build(form, responses)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.WriteXLSX(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename is the download name of a form export.
func Filename(form *model.Form) string {
	return strings.ReplaceAll(form.Name, " ", "_") + "_responses.xlsx"
}

// WriteXLSX writes t as a single sheet workbook: styled, frozen header row
// and hyperlinked cells for file references. Past the sheet hyperlink limit
// references are written as plain text, and cell text longer than excelize
// accepts is cut; both are logged.
func (t *Table) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 12},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	linkStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "0563C1", Underline: "single"},
	})
	if err != nil {
		return fmt.Errorf("link style: %w", err)
	}

	for i, h := range t.Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(SheetName, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(t.Header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, 20); err != nil {
		return err
	}

	var links, unlinked, truncated int
	for r, row := range t.Rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if utf8.RuneCountInString(v.Text) > excelize.TotalCellChars {
				truncated++
			}
			if err := f.SetCellStr(SheetName, cell, v.Text); err != nil {
				return err
			}
			if v.Link == "" {
				continue
			}
			if links >= maxSheetLinks {
				unlinked++
				continue
			}
			links++
			if err := f.SetCellHyperLink(SheetName, cell, v.Link, "External"); err != nil {
				return fmt.Errorf("hyperlink %s: %w", cell, err)
			}
			if err := f.SetCellStyle(SheetName, cell, cell, linkStyle); err != nil {
				return err
			}
		}
	}

	if unlinked > 0 || truncated > 0 {
		logger.Component("export").WithFields(logrus.Fields{
			"rows":            len(t.Rows),
			"unlinked_files":  unlinked,
			"truncated_cells": truncated,
		}).Warn("export written with degraded cells")
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

// display renders a non file value for a plain cell.
func display(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, formschema.Text(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return formschema.Text(v)
		}
		return string(b)
	}
	return formschema.Text(v)
}
