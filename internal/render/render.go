// Package render produces the completed document by writing field
// values onto page 1 of an uploaded template. Three interchangeable
// strategies exist: coordinate overlay, named-field form fill (with an
// optional overlay pass) and delegation to a remote rendering backend.
// A deployment uses exactly one, selected by configuration.
package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/fieldstamp/fieldstamp/internal/config"
)

// Rendering error taxonomy. All three are terminal for the session.
var (
	// ErrCorruptTemplate indicates the template bytes cannot be parsed
	// as a PDF document.
	ErrCorruptTemplate = fmt.Errorf("corrupt template")

	// ErrTemplateMismatch indicates the deployment configuration lacks
	// the geometry or named-field mapping a required field needs.
	ErrTemplateMismatch = fmt.Errorf("template mismatch")

	// ErrRenderBackend indicates the remote rendering backend failed.
	ErrRenderBackend = fmt.Errorf("render backend failure")
)

// Renderer writes field values onto a template and returns the completed
// document bytes. Implementations never touch pages other than page 1
// and preserve page count and order.
type Renderer interface {
	Render(template []byte, values map[string]string) ([]byte, error)
}

// New returns the Renderer selected by the deployment configuration.
func New(cfg *config.Config) (Renderer, error) {
	switch cfg.Strategy {
	case config.StrategyOverlay:
		return NewOverlay(cfg.Placements), nil
	case config.StrategyFormFill:
		return NewFormFill(cfg.FormOverlay), nil
	case config.StrategyRemote:
		return NewRemote(cfg.Remote.URL, time.Duration(cfg.Remote.TimeoutSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown rendering strategy: %s", cfg.Strategy)
	}
}

// readContext parses template bytes into a pdfcpu context with relaxed
// validation, the parse mode used everywhere in this package.
func readContext(doc []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(doc), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTemplate, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTemplate, err)
	}
	return ctx, nil
}
