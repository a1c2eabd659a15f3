package render

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/fieldstamp/fieldstamp/internal/config"
)

// Overlay stamps each field value as text at its configured page-1
// coordinate. The stamps are composited over the existing page content;
// nothing is removed and every other page is carried over verbatim.
type Overlay struct {
	placements []config.Placement
}

// NewOverlay creates an overlay renderer using the given placement table.
func NewOverlay(placements []config.Placement) *Overlay {
	return &Overlay{placements: placements}
}

// Render stamps all values onto page 1 of the template. Every value must
// have at least one placement, otherwise ErrTemplateMismatch.
func (o *Overlay) Render(template []byte, values map[string]string) ([]byte, error) {
	if _, err := readContext(template); err != nil {
		return nil, err
	}
	if err := checkPlacementCoverage(o.placements, values); err != nil {
		return nil, err
	}
	return stampPage1(template, o.placements, values)
}

// checkPlacementCoverage verifies every field value has somewhere to go.
func checkPlacementCoverage(placements []config.Placement, values map[string]string) error {
	placed := make(map[string]bool, len(placements))
	for _, p := range placements {
		placed[p.Field] = true
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !placed[name] {
			return fmt.Errorf("%w: no placement configured for field %s", ErrTemplateMismatch, name)
		}
	}
	return nil
}

// stampPage1 applies one text watermark per placement to page 1 only,
// leaving all other pages untouched. Shared with the form-fill strategy
// for its optional overlay pass.
func stampPage1(doc []byte, placements []config.Placement, values map[string]string) ([]byte, error) {
	watermarks := make([]*model.Watermark, 0, len(placements))
	for _, p := range placements {
		value, ok := values[p.Field]
		if !ok || value == "" {
			continue
		}
		wm, err := api.TextWatermark(value, placementDesc(p), true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to build stamp for field %s: %w", p.Field, err)
		}
		watermarks = append(watermarks, wm)
	}
	if len(watermarks) == 0 {
		return doc, nil
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	m := map[int][]*model.Watermark{1: watermarks}
	if err := api.AddWatermarksSliceMap(bytes.NewReader(doc), &buf, m, conf); err != nil {
		return nil, fmt.Errorf("failed to stamp page 1: %w", err)
	}
	return buf.Bytes(), nil
}

// placementDesc renders a placement into a pdfcpu watermark description.
// Coordinates are absolute points from the anchor corner, scale pinned
// to 1 so the text keeps its configured size.
func placementDesc(p config.Placement) string {
	font := p.Font
	if font == "" {
		font = config.DefaultFont
	}
	size := p.Size
	if size == 0 {
		size = config.DefaultLabelSize
	}
	anchor := p.Anchor
	if anchor == "" {
		anchor = "bl"
	}
	return fmt.Sprintf("fontname:%s, points:%d, position:%s, offset:%.0f %.0f, scalefactor:1 abs, rotation:0, opacity:1",
		font, size, anchor, p.X, p.Y)
}
