package archive

import (
	"bytes"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

type sheetItem struct {
	label string
	png   []byte
	w, h  int
}

const (
	sheetColumns = 4
	sheetCell    = 40.0 // mm
	sheetLabel   = 6.0
	sheetMargin  = 15.0
)

// contactSheet lays the previews out on A4 pages in a fixed grid, each
// image fitted into its cell with the file name underneath.
func contactSheet(title string, items []sheetItem) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(sheetMargin, sheetMargin, sheetMargin)
	pdf.SetAutoPageBreak(false, sheetMargin)
	_, pageH := pdf.GetPageSize()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	if title != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 7)
	top := pdf.GetY() + 2
	row := 0
	for i, it := range items {
		col := i % sheetColumns
		if i > 0 && col == 0 {
			row++
		}
		y := top + float64(row)*(sheetCell+sheetLabel+4)
		if y+sheetCell+sheetLabel > pageH-sheetMargin {
			pdf.AddPage()
			top, row = sheetMargin, 0
			y = top
		}
		x := sheetMargin + float64(col)*(sheetCell+4)
		pdf.SetDrawColor(200, 200, 200)
		pdf.Rect(x, y, sheetCell, sheetCell, "D")
		if it.png != nil && it.w > 0 && it.h > 0 {
			name := "img" + strconv.Itoa(i)
			opt := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(it.png))
			w, h := fit(float64(it.w), float64(it.h), sheetCell-4)
			pdf.ImageOptions(name, x+(sheetCell-w)/2, y+(sheetCell-h)/2, w, h, false, opt, 0, "")
		} else {
			pdf.SetXY(x, y+sheetCell/2-2)
			pdf.CellFormat(sheetCell, 4, "(no preview)", "", 0, "C", false, 0, "")
		}
		pdf.SetXY(x, y+sheetCell+1)
		pdf.CellFormat(sheetCell, sheetLabel-1, tr(truncate(it.label, 28)), "", 0, "C", false, 0, "")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fit scales w x h to fit inside a square of side max, preserving aspect.
func fit(w, h, max float64) (float64, float64) {
	if w >= h {
		return max, h * max / w
	}
	return w * max / h, max
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
