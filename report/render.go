package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Skryldev/adimage-uploader/core"
	"github.com/xuri/excelize/v2"
)

// Columns is the column order shared by every tabular format.
var Columns = []string{"image_name", "image_hash", "status", "error", "image_path"}

var excelHeaders = []string{"Image Name", "Image Hash", "Status", "Error", "Image Path"}

// excelWidths are per-column character widths.
var excelWidths = []float64{30, 40, 15, 50, 50}

const sheetName = "Upload Results"

// Render writes results to w in format f.
func Render(w io.Writer, results []core.Result, f Format) error {
	switch f {
	case CSV:
		return renderCSV(w, results)
	case JSON:
		return renderJSON(w, results)
	case Excel:
		return renderExcel(w, results)
	case HTML:
		return renderHTML(w, results)
	}
	return fmt.Errorf("unsupported report format: %s", f)
}

func row(r core.Result) []string {
	return []string{r.ImageName, r.ImageHash, string(r.Status), r.Error, r.ImagePath}
}

// ── CSV ───────────────────────────────────────────────────────────────────────

func renderCSV(w io.Writer, results []core.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ── JSON ──────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, results []core.Result) error {
	if results == nil {
		results = []core.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// ── Excel ─────────────────────────────────────────────────────────────────────

func renderExcel(w io.Writer, results []core.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	for i, width := range excelWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return err
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &excelHeaders); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, header); err != nil {
		return err
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(r)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}
	_, err = f.WriteTo(w)
	return err
}

// ── HTML ──────────────────────────────────────────────────────────────────────

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Facebook Image Upload Report</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 20px; }
      table { border-collapse: collapse; width: 100%; }
      th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
      th { background-color: #f2f2f2; }
      .success { color: green; }
      .error { color: red; }
    </style>
  </head>
  <body>
    <h1>Facebook Image Upload Report</h1>
    <p>Generated {{.Generated}}: {{.Succeeded}} of {{.Total}} images uploaded.</p>
    <table>
      <tr><th>Image Name</th><th>Image Hash</th><th>Status</th><th>Error</th><th>Image Path</th></tr>
      {{- range .Results}}
      <tr>
        <td>{{.ImageName}}</td>
        <td>{{.ImageHash}}</td>
        <td class="{{if .Succeeded}}success{{else}}error{{end}}">{{.Status}}</td>
        <td>{{.Error}}</td>
        <td>{{.ImagePath}}</td>
      </tr>
      {{- end}}
    </table>
  </body>
</html>
`))

func renderHTML(w io.Writer, results []core.Result) error {
	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	return htmlTemplate.Execute(w, struct {
		Generated string
		Total     int
		Succeeded int
		Results   []core.Result
	}{
		Generated: time.Now().Format(time.RFC1123),
		Total:     len(results),
		Succeeded: succeeded,
		Results:   results,
	})
}
