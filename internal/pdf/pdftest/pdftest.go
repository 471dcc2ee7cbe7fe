// Package pdftest строит маленькие валидные PDF для тестов. Ширина каждой
// страницы кодирует её номер, поэтому порядок страниц после любых операций
// проверяется через Widths.
package pdftest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"
)

func init() {
	model.ConfigPath = "disable"
}

// WidthOf ширина страницы с номером n (с единицы) в документах Build.
func WidthOf(n int) float64 {
	return float64(200 + 10*n)
}

// Build возвращает PDF из n страниц с ширинами WidthOf(1..n).
func Build(n int) []byte {
	widths := make([]float64, n)
	for i := range widths {
		widths[i] = WidthOf(i + 1)
	}
	return BuildWidths(widths...)
}

// BuildWidths возвращает PDF, где i-я страница имеет ширину widths[i].
func BuildWidths(widths ...float64) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0, 2+2*len(widths))

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := new(bytes.Buffer)
	for i := range widths {
		fmt.Fprintf(kids, "%d 0 R ", 3+2*i)
	}

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), len(widths)))
	for i, w := range widths {
		content := fmt.Sprintf("q 0 0 %d 10 re f Q", 10+i)
		writeObj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.0f 300] /Resources << >> /Contents %d 0 R >>", w, 4+2*i))
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// Widths возвращает ширины страниц документа по порядку.
func Widths(t testing.TB, data []byte) []float64 {
	t.Helper()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	dims, err := api.PageDims(bytes.NewReader(data), conf)
	require.NoError(t, err)

	out := make([]float64, len(dims))
	for i, d := range dims {
		out[i] = d.Width
	}
	return out
}

// Expect ширины для последовательности исходных номеров страниц.
func Expect(numbers ...int) []float64 {
	out := make([]float64, len(numbers))
	for i, n := range numbers {
		out[i] = WidthOf(n)
	}
	return out
}
