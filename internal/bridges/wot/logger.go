package wot

import (
	"errors"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// Logger is the logging interface used by the bridge.
// Compatible with *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// bindOne builds the handler for the first applicable form. A missing
// handler is normal (the operation is unavailable) and returns the zero H;
// build failures are logged.
func bindOne[H any](impls []binding.Impl[H], env binding.Env, forms []thing.Form, log Logger, interaction string, op thing.Op) H {
	h, form, err := binding.Bind(impls, env, forms)
	if err != nil {
		if !errors.Is(err, binding.ErrNoApplicableHandler) {
			log.Warn("cannot bind form", "interaction", interaction, "op", op, "href", form.Href, "error", err)
		}
		var zero H
		return zero
	}
	log.Debug("form bound", "interaction", interaction, "op", op, "href", form.Href)
	return h
}
