// Package logging builds the slog loggers used across hush: a human
// key=value console handler for interactive use and a JSON handler for
// machine consumption, plus small attr helpers shared by every component.
package logging
