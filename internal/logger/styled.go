package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/theme"
)

// StyledLogger wraps *slog.Logger with proxy-domain convenience methods for
// proxies and circuit breaker transitions. Credentials never reach this
// type: callers pass a proxy id, never an Endpoint or URL.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger wraps logger with theme-aware formatting.
func NewStyledLogger(logger *slog.Logger, appTheme *theme.Theme) *StyledLogger {
	return &StyledLogger{logger: logger, theme: appTheme}
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

// WithProxy returns a logger with the proxy id attached as a structured
// field on every subsequent call — the id only, never the rendered
// Endpoint (which may carry a credential).
func (sl *StyledLogger) WithProxy(proxyID string) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With("proxy_id", proxyID), theme: sl.theme}
}

// InfoWithProxy logs msg with the proxy id rendered in the theme's
// highlight style.
func (sl *StyledLogger) InfoWithProxy(msg string, proxyID string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, sl.theme.Highlight.Sprint(proxyID))
	sl.logger.Info(styled, args...)
}

// WarnBreakerTransition logs a circuit breaker state change in the theme's
// warn style (or error style when the transition opens the circuit).
func (sl *StyledLogger) WarnBreakerTransition(proxyID string, from, to domain.BreakerState) {
	transition := fmt.Sprintf("%s -> %s", from, to)
	var styled string
	if to == domain.BreakerOpen {
		styled = sl.theme.Error.Sprint(transition)
	} else {
		styled = sl.theme.Warn.Sprint(transition)
	}
	sl.logger.Warn("circuit breaker transition", "proxy_id", proxyID, "transition", styled)
}

// InfoRotation logs a strategy hot-swap.
func (sl *StyledLogger) InfoRotation(fromStrategy, toStrategy string) {
	styled := sl.theme.Accent.Sprint(fmt.Sprintf("%s -> %s", fromStrategy, toStrategy))
	sl.logger.Info("selection strategy swapped", "transition", styled)
}

// InfoWithCounts logs msg with a parenthesised, styled count.
func (sl *StyledLogger) InfoWithCounts(msg string, count int, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, sl.theme.Highlight.Sprint("(", count, ")"))
	sl.logger.Info(styled, args...)
}

// With creates a new StyledLogger with additional key-value pairs.
func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

// GetUnderlying returns the wrapped *slog.Logger for callers that need
// direct access (e.g. passing it to the retry.Executor's Logger field).
func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

// NewWithTheme builds both the plain *slog.Logger and its StyledLogger
// wrapper in one call.
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	plain, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	appTheme := theme.GetTheme(cfg.Theme)
	return plain, NewStyledLogger(plain, appTheme), cleanup, nil
}
