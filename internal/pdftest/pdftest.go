// Package pdftest assembles minimal but structurally valid PDF
// documents for tests, with a correct cross-reference table computed at
// build time so strict parsers accept them.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

const fontObject = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"

type builder struct {
	buf     bytes.Buffer
	offsets []int64
}

func newBuilder() *builder {
	b := &builder{}
	b.buf.WriteString("%PDF-1.4\n")
	return b
}

// addObj appends the next numbered object. Object numbers are assigned
// sequentially from 1, so callers plan their reference layout up front.
func (b *builder) addObj(body string) int {
	num := len(b.offsets) + 1
	b.offsets = append(b.offsets, int64(b.buf.Len()))
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	return num
}

func (b *builder) addStream(content string) int {
	return b.addObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
}

func (b *builder) finish(rootNum int) []byte {
	start := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", len(b.offsets)+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for _, off := range b.offsets {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(b.offsets)+1, rootNum, start)
	return b.buf.Bytes()
}

// MinimalPDF returns a document with the given number of pages, each
// carrying a short text content stream.
func MinimalPDF(pageCount int) []byte {
	b := newBuilder()

	// Layout: 1 catalog, 2 page tree, 3 font, then page/content pairs.
	kids := make([]string, pageCount)
	for i := 0; i < pageCount; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	b.addObj("<< /Type /Catalog /Pages 2 0 R >>")
	b.addObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pageCount))
	b.addObj(fontObject)
	for i := 0; i < pageCount; i++ {
		b.addObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		b.addStream(fmt.Sprintf("BT /F1 12 Tf 72 720 Td (Page %d) Tj ET", i+1))
	}

	return b.finish(1)
}

// TwoPageFormPDF returns a two-page document whose AcroForm carries one
// text field per name, the first slice's widgets on page 1 and the
// second slice's on page 2.
func TwoPageFormPDF(pageOneFields, pageTwoFields []string) []byte {
	b := newBuilder()

	// Layout: 1 catalog, 2 page tree, 3 font, 4/5 page 1, 6/7 page 2,
	// 8+ field annots (page 1 fields first).
	firstField := 8
	refs := func(start, count int) string {
		rr := make([]string, count)
		for i := 0; i < count; i++ {
			rr[i] = fmt.Sprintf("%d 0 R", start+i)
		}
		return strings.Join(rr, " ")
	}
	pageOneRefs := refs(firstField, len(pageOneFields))
	pageTwoRefs := refs(firstField+len(pageOneFields), len(pageTwoFields))
	allRefs := strings.TrimSpace(pageOneRefs + " " + pageTwoRefs)

	b.addObj(fmt.Sprintf(
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [%s] "+
			"/DA (/F1 10 Tf 0 g) /DR << /Font << /F1 3 0 R >> >> >> >>", allRefs))
	b.addObj("<< /Type /Pages /Kids [4 0 R 6 0 R] /Count 2 >>")
	b.addObj(fontObject)
	b.addObj(fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents 5 0 R /Annots [%s] >>", pageOneRefs))
	b.addStream("BT /F1 12 Tf 72 740 Td (Intake Form) Tj ET")
	b.addObj(fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents 7 0 R /Annots [%s] >>", pageTwoRefs))
	b.addStream("BT /F1 12 Tf 72 740 Td (Continuation) Tj ET")

	addFields := func(names []string, pageRef string) {
		for i, name := range names {
			y := 700 - 30*i
			b.addObj(fmt.Sprintf(
				"<< /Type /Annot /Subtype /Widget /FT /Tx /T (%s) /Rect [100 %d 300 %d] "+
					"/F 4 /P %s /DA (/F1 10 Tf 0 g) >>", name, y, y+20, pageRef))
		}
	}
	addFields(pageOneFields, "4 0 R")
	addFields(pageTwoFields, "6 0 R")

	return b.finish(1)
}

// FormPDF returns a single-page document with one text form field per
// name, each a merged field/widget annotation on page 1.
func FormPDF(fieldNames ...string) []byte {
	b := newBuilder()

	// Layout: 1 catalog, 2 page tree, 3 font, 4 page, 5 content, 6+ fields.
	refs := make([]string, len(fieldNames))
	for i := range fieldNames {
		refs[i] = fmt.Sprintf("%d 0 R", 6+i)
	}
	fieldRefs := strings.Join(refs, " ")

	b.addObj(fmt.Sprintf(
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [%s] "+
			"/DA (/F1 10 Tf 0 g) /DR << /Font << /F1 3 0 R >> >> >> >>", fieldRefs))
	b.addObj("<< /Type /Pages /Kids [4 0 R] /Count 1 >>")
	b.addObj(fontObject)
	b.addObj(fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents 5 0 R /Annots [%s] >>", fieldRefs))
	b.addStream("BT /F1 12 Tf 72 740 Td (Intake Form) Tj ET")
	for i, name := range fieldNames {
		y := 700 - 30*i
		b.addObj(fmt.Sprintf(
			"<< /Type /Annot /Subtype /Widget /FT /Tx /T (%s) /Rect [100 %d 300 %d] "+
				"/F 4 /P 4 0 R /DA (/F1 10 Tf 0 g) >>", name, y, y+20))
	}

	return b.finish(1)
}
