// Package pipeline orchestrates one intake round trip: template upload,
// question/answer advancement, derived-field computation and rendering.
// Transports hand every inbound event to a Pipeline method and deliver
// whatever Reply comes back; no error from the core ever escapes to a
// transport as a raw fault.
package pipeline

import (
	"errors"
	"fmt"
	"log"

	"github.com/fieldstamp/fieldstamp/internal/datetime"
	"github.com/fieldstamp/fieldstamp/internal/derive"
	"github.com/fieldstamp/fieldstamp/internal/intake"
	"github.com/fieldstamp/fieldstamp/internal/render"
	"github.com/fieldstamp/fieldstamp/internal/session"
)

// User-facing messages for situations the intake machine does not word
// itself.
const (
	msgNoSession     = "No active document. Upload a PDF template to begin."
	msgCancelled     = "Cancelled."
	msgBadTemplate   = "That file could not be read as a PDF template. Please upload a valid PDF."
	msgDone          = "Here is your completed report."
	msgInternalError = "Something went wrong on our side. Upload the template again to retry."
)

// Reply is what the transport delivers back to the user: a message, and
// on successful completion the rendered document with its suggested
// filename.
type Reply struct {
	Text     string
	Document []byte
	Filename string
}

// Pipeline wires the session store, intake machine, derived-field
// generator and renderer together. One Pipeline serves all users.
type Pipeline struct {
	store         *session.Store
	machine       *intake.Machine
	gen           *derive.Generator
	renderer      render.Renderer
	inspector     *render.Inspector
	deliveryField string
}

// New creates a Pipeline. deliveryField names the collected field
// holding the delivery instant used for follow-up scheduling.
func New(store *session.Store, machine *intake.Machine, gen *derive.Generator,
	renderer render.Renderer, inspector *render.Inspector, deliveryField string,
) *Pipeline {
	return &Pipeline{
		store:         store,
		machine:       machine,
		gen:           gen,
		renderer:      renderer,
		inspector:     inspector,
		deliveryField: deliveryField,
	}
}

// TemplateUploaded validates the uploaded bytes and starts a fresh
// session for the user, replacing any session already in progress.
func (p *Pipeline) TemplateUploaded(userID string, doc []byte) Reply {
	info, err := p.inspector.Inspect(doc)
	if err != nil {
		log.Printf("rejected template from user %s: %v", userID, err)
		return Reply{Text: msgBadTemplate}
	}

	s := p.store.Create(userID, doc)
	log.Printf("session %s started for user %s (%d pages)", s.ID, userID, info.PageCount)
	return Reply{Text: p.machine.FirstPrompt()}
}

// TextReceived advances the user's session with the given answer. The
// reply is the next prompt, a validation message for the same prompt, a
// no-session hint, or, on the final valid answer, the rendered document.
func (p *Pipeline) TextReceived(userID, text string) Reply {
	var res intake.Result
	var template []byte
	var collected map[string]string

	err := p.store.Mutate(userID, func(s *session.Session) error {
		r, err := p.machine.Advance(s, text)
		if err != nil {
			return err
		}
		res = r
		if r.Done {
			// Snapshot under the session lock; the render runs outside it.
			template = s.Template
			collected = make(map[string]string, len(s.Collected))
			for k, v := range s.Collected {
				collected[k] = v
			}
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return Reply{Text: msgNoSession}
		}
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			return Reply{Text: verr.Message}
		}
		log.Printf("advance failed for user %s: %v", userID, err)
		return Reply{Text: msgInternalError}
	}

	if !res.Done {
		return Reply{Text: res.Prompt}
	}

	// The session ends here no matter how the render goes; a failed
	// render means re-uploading the template, not answering again.
	p.store.Remove(userID)
	return p.complete(userID, template, collected)
}

// CancelRequested destroys the user's session. Safe to call when none
// exists.
func (p *Pipeline) CancelRequested(userID string) Reply {
	if p.store.Remove(userID) {
		log.Printf("session cancelled for user %s", userID)
	}
	return Reply{Text: msgCancelled}
}

// complete computes the derived fields and renders the document.
func (p *Pipeline) complete(userID string, template []byte, values map[string]string) Reply {
	deliveryAt, err := datetime.Parse(values[p.deliveryField])
	if err != nil {
		log.Printf("stored delivery instant unparseable for user %s: %v", userID, err)
		return Reply{Text: msgInternalError}
	}

	values[derive.FieldReportDateTime] = datetime.Canonical(p.gen.NextBusinessDay(deliveryAt))
	values[derive.FieldBadge] = p.gen.Badge()
	reportNumber := p.gen.ReportNumber()
	values[derive.FieldReportNumber] = reportNumber

	doc, err := p.renderer.Render(template, values)
	if err != nil {
		log.Printf("render failed for user %s: %v", userID, err)
		return Reply{Text: renderFailureMessage(err)}
	}

	log.Printf("report %s rendered for user %s (%d bytes)", reportNumber, userID, len(doc))
	return Reply{
		Text:     msgDone,
		Document: doc,
		Filename: fmt.Sprintf("report-%s.pdf", reportNumber),
	}
}

// renderFailureMessage translates the rendering error taxonomy into a
// user-facing explanation.
func renderFailureMessage(err error) string {
	switch {
	case errors.Is(err, render.ErrTemplateMismatch):
		return "The template doesn't match the configured field layout. Please upload the correct template."
	case errors.Is(err, render.ErrCorruptTemplate):
		return "The uploaded template could not be parsed. Please upload a valid PDF and try again."
	case errors.Is(err, render.ErrRenderBackend):
		return fmt.Sprintf("The rendering service failed: %v. Upload the template again to retry.", err)
	default:
		return msgInternalError
	}
}
