/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders compiled scenes into printable documents.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	applog "gocutscene/internal/log"
	"gocutscene/internal/scene"
)

// PDFOptions controls the script sheet layout. Units are millimetres.
type PDFOptions struct {
	PageSize string // gofpdf size name: "A4", "Letter", ...
	Font     string // built-in core font family
	FontSize float64
	Indent   float64 // per nesting level
}

func (o PDFOptions) withDefaults() PDFOptions {
	if o.PageSize == "" {
		o.PageSize = "A4"
	}
	if o.Font == "" {
		o.Font = "Courier"
	}
	if o.FontSize <= 0 {
		o.FontSize = 11
	}
	if o.Indent <= 0 {
		o.Indent = 8
	}
	return o
}

// Row is one printed line of a script sheet.
type Row struct {
	Index int
	Depth int
	Text  string
	Bold  bool
}

// SheetRows lays out sc as indented rows, one per buffer entry.
func SheetRows(sc *scene.Scene) []Row {
	var rows []Row
	var ends []int // exclusive end index of each open block
	for i, c := range sc.Commands {
		for len(ends) > 0 && i >= ends[len(ends)-1] {
			ends = ends[:len(ends)-1]
		}
		row := Row{Index: i, Depth: len(ends), Text: describe(c)}
		switch c := c.(type) {
		case *scene.Block:
			row.Bold = true
			ends = append(ends, i+1+c.Count)
		case *scene.Label:
			row.Bold = true
		}
		if b, ok := c.(scene.Bearer); ok {
			if reqs := b.Common().Requirements; len(reqs) > 0 {
				parts := make([]string, len(reqs))
				for j, r := range reqs {
					parts[j] = r.String()
				}
				row.Text += "  [if " + strings.Join(parts, ", ") + "]"
			}
			if d := b.Common().Delay; d > 0 {
				row.Text += fmt.Sprintf("  (after %gs)", d)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func describe(c scene.Command) string {
	switch c := c.(type) {
	case *scene.Block:
		return fmt.Sprintf("%s (%d)", strings.ToUpper(c.Type.String()), c.Count)
	case *scene.Say:
		verb := ""
		if c.Think {
			verb = " (thinks)"
		}
		return fmt.Sprintf("%s%s: %s", strings.ToUpper(c.Who), verb, c.Line)
	case *scene.Option:
		return fmt.Sprintf("-> %s  \"%s\"", c.Label, c.Text)
	case *scene.Label:
		return "[" + c.Name + "]"
	case *scene.Goto:
		return "GOTO " + c.Label
	case *scene.Wait:
		return fmt.Sprintf("wait %gs", c.Time)
	case *scene.LookAt:
		return fmt.Sprintf("%s looks at %s", c.Who, c.Target)
	case *scene.EnablePlayerControl:
		return "player control on"
	case *scene.DisablePlayerControl:
		return "player control off"
	case *scene.Exit:
		return "EXIT"
	case nil:
		return "?"
	default:
		return c.Kind().String()
	}
}

// WriteScenePDF renders sc as a script sheet to w.
func WriteScenePDF(w io.Writer, sc *scene.Scene, opt PDFOptions) error {
	if sc == nil {
		return errors.New("scene is nil")
	}
	opt = opt.withDefaults()
	pdf := gofpdf.New("P", "mm", opt.PageSize, "")
	pdf.SetTitle(sc.Name, true)
	pdf.SetCreator("gocutscene", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	lineH := opt.FontSize * 0.5

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(opt.Font, "", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  -  %d", tr(sc.Name), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(opt.Font, "B", opt.FontSize+4)
	title := sc.Name
	if sc.Dialogue {
		title += " (dialogue)"
	}
	pdf.CellFormat(0, lineH*2, tr(title), "B", 1, "L", false, 0, "")
	pdf.Ln(lineH)

	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	for _, r := range SheetRows(sc) {
		style := ""
		if r.Bold {
			style = "B"
		}
		pdf.SetFont(opt.Font, "", opt.FontSize-2)
		pdf.SetTextColor(150, 150, 150)
		pdf.SetX(left)
		pdf.CellFormat(10, lineH, fmt.Sprintf("%3d", r.Index), "", 0, "R", false, 0, "")

		x := left + 12 + float64(r.Depth)*opt.Indent
		pdf.SetFont(opt.Font, style, opt.FontSize)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetX(x)
		pdf.MultiCell(pageW-right-x, lineH, tr(r.Text), "", "L", false)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

// ScenePDF writes the script sheet of sc to outPath, creating parent directories.
func ScenePDF(sc *scene.Scene, outPath string, opt PDFOptions) (err error) {
	l := applog.WithOperation(applog.WithComponent("export"), "scene_pdf")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := WriteScenePDF(f, sc, opt); err != nil {
		return err
	}
	l.Info("pdf written", slog.String("path", outPath))
	return nil
}
