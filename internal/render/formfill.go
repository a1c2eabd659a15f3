package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/fieldstamp/fieldstamp/internal/config"
)

// FormFill writes values into the template's named interactive fields.
// Values without a matching field are silently skipped by the fill step;
// an optional overlay pass stamps extra placements (footer timestamp,
// centered title) using the same mechanics as the overlay strategy.
type FormFill struct {
	extra []config.Placement
}

// NewFormFill creates a form-fill renderer. extra may be empty.
func NewFormFill(extra []config.Placement) *FormFill {
	return &FormFill{extra: extra}
}

// Render fills matching AcroForm fields on page 1, then applies the
// configured overlay placements, also page 1 only. A template without an
// interactive form yields ErrTemplateMismatch.
func (f *FormFill) Render(template []byte, values map[string]string) ([]byte, error) {
	ctx, err := readContext(template)
	if err != nil {
		return nil, err
	}

	if err := fillAcroForm(ctx, values); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write filled document: %w", err)
	}
	out := buf.Bytes()

	if len(f.extra) > 0 {
		out, err = stampPage1(out, f.extra, values)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// fillAcroForm walks the document's AcroForm field tree and sets the
// value entry of every matching field whose widget sits on page 1;
// fields rendered on later pages are left alone. The appearance stream
// is dropped and NeedAppearances raised so viewers regenerate the
// visual from the new value.
func fillAcroForm(ctx *model.Context, values map[string]string) error {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTemplate, err)
	}

	pageOne, err := pageOneAnnots(ctx)
	if err != nil {
		return err
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return fmt.Errorf("%w: template has no interactive form", ErrTemplateMismatch)
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return fmt.Errorf("%w: unreadable AcroForm dictionary", ErrCorruptTemplate)
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return fmt.Errorf("%w: interactive form has no fields", ErrTemplateMismatch)
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return fmt.Errorf("%w: unreadable Fields array", ErrCorruptTemplate)
	}

	for _, fieldRef := range fieldsArray {
		fieldDict, err := ctx.DereferenceDict(fieldRef)
		if err != nil || fieldDict == nil {
			continue
		}

		nameObj, found := fieldDict.Find("T")
		if !found {
			continue
		}
		name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil)
		if err != nil {
			continue
		}

		value, ok := values[name]
		if !ok {
			continue
		}
		if !widgetOnPageOne(ctx, fieldRef, fieldDict, pageOne) {
			continue
		}
		fieldDict["V"] = stringLiteral(value)
		delete(fieldDict, "AP")
	}

	acroFormDict["NeedAppearances"] = types.Boolean(true)
	return nil
}

// pageOneAnnots returns the object numbers of page 1's annotations.
func pageOneAnnots(ctx *model.Context) (map[int]bool, error) {
	pageDict, _, _, err := ctx.PageDict(1, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTemplate, err)
	}

	onPage := make(map[int]bool)
	annotsObj, found := pageDict.Find("Annots")
	if !found {
		return onPage, nil
	}
	annots, err := ctx.DereferenceArray(annotsObj)
	if err != nil {
		return onPage, nil
	}
	for _, obj := range annots {
		if ref, ok := obj.(types.IndirectRef); ok {
			onPage[ref.ObjectNumber.Value()] = true
		}
	}
	return onPage, nil
}

// widgetOnPageOne reports whether the field itself (merged field/widget)
// or one of its kid widgets is annotated on page 1.
func widgetOnPageOne(ctx *model.Context, fieldRef types.Object, fieldDict types.Dict, onPage map[int]bool) bool {
	if ref, ok := fieldRef.(types.IndirectRef); ok && onPage[ref.ObjectNumber.Value()] {
		return true
	}

	kidsObj, found := fieldDict.Find("Kids")
	if !found {
		return false
	}
	kids, err := ctx.DereferenceArray(kidsObj)
	if err != nil {
		return false
	}
	for _, kid := range kids {
		if ref, ok := kid.(types.IndirectRef); ok && onPage[ref.ObjectNumber.Value()] {
			return true
		}
	}
	return false
}

// stringLiteral escapes a value for use as a PDF literal string object.
func stringLiteral(s string) types.StringLiteral {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return types.StringLiteral(r.Replace(s))
}
