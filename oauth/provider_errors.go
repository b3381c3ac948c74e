package oauth

import (
	"errors"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ProviderError carries the upstream detail of a failed provider call.
// It travels inside the rich error chain as the source, so callers can
// recover the provider response via errors.As instead of parsing
// messages.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
	Raw         map[string]any
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	var b strings.Builder
	switch {
	case e.Provider != "" && e.Operation != "":
		b.WriteString(e.Provider + " " + e.Operation)
	case e.Provider != "":
		b.WriteString(e.Provider)
	case e.Operation != "":
		b.WriteString(e.Operation)
	default:
		b.WriteString("provider")
	}
	b.WriteString(" failed")

	switch {
	case e.Description != "":
		b.WriteString(": " + e.Description)
	case e.Code != "":
		b.WriteString(": " + e.Code)
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	}

	if e.Status != 0 {
		b.WriteString(" (status " + strconv.Itoa(e.Status) + ")")
	}

	return b.String()
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata flattens the populated fields for error reporting.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	for key, val := range map[string]string{
		"provider":    e.Provider,
		"operation":   e.Operation,
		"code":        e.Code,
		"description": e.Description,
	} {
		if val != "" {
			meta[key] = val
		}
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if len(e.Raw) > 0 {
		meta["raw"] = e.Raw
	}

	return meta
}

// wrapProviderError layers one of the package's closed-set errors over
// a provider failure, keeping the upstream detail reachable through
// errors.As and the metadata.
func wrapProviderError(base *goerrors.Error, provider, operation string, err error) error {
	if base == nil {
		return err
	}

	rich := base.Clone()
	if rich == nil {
		rich = base
	}
	rich.Source = err

	meta := map[string]any{
		"provider":  provider,
		"operation": operation,
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	return rich.WithMetadata(meta)
}
