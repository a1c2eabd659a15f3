// Package intake drives one user session through the ordered question
// sequence, validating and storing each answer.
package intake

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fieldstamp/fieldstamp/internal/config"
	"github.com/fieldstamp/fieldstamp/internal/datetime"
)

// FieldSpec is one ordered question in the intake sequence. Validate
// returns the value to store for valid input, or an error whose message
// is shown to the user verbatim.
type FieldSpec struct {
	Name     string
	Prompt   string
	Validate func(raw string) (string, error)
}

// BuildFields resolves the configured field table into FieldSpecs with
// validators attached per kind. Field order is collection order.
func BuildFields(fields []config.Field) ([]FieldSpec, error) {
	specs := make([]FieldSpec, 0, len(fields))
	for _, f := range fields {
		validate, err := validatorFor(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		specs = append(specs, FieldSpec{
			Name:     f.Name,
			Prompt:   f.Prompt,
			Validate: validate,
		})
	}
	return specs, nil
}

func validatorFor(kind string) (func(string) (string, error), error) {
	switch kind {
	case config.KindText:
		return validateText, nil
	case config.KindEmail:
		return validateEmail, nil
	case config.KindMoney:
		return validateMoney, nil
	case config.KindDateTime:
		return validateDateTime, nil
	default:
		return nil, fmt.Errorf("unknown field kind: %s", kind)
	}
}

func validateText(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fmt.Errorf("this answer cannot be empty, please try again")
	}
	return v, nil
}

func validateEmail(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	at := strings.Index(v, "@")
	if at <= 0 || at == len(v)-1 || !strings.Contains(v[at+1:], ".") {
		return "", fmt.Errorf("that doesn't look like an email address, please try again")
	}
	return v, nil
}

func validateMoney(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(v, "$")
	if f, err := strconv.ParseFloat(v, 64); err != nil || f < 0 {
		return "", fmt.Errorf("please enter the order total as a number, e.g. 49.99")
	}
	return v, nil
}

// validateDateTime stores the canonical form so downstream parsing is
// layout-independent.
func validateDateTime(raw string) (string, error) {
	t, err := datetime.Parse(datetime.Normalize(raw))
	if err != nil {
		return "", fmt.Errorf("Invalid format. Please use: YYYY-MM-DD H:MM AM/PM")
	}
	return datetime.Canonical(t), nil
}
