package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/theme"
)

func newTestStyledLogger(buf *bytes.Buffer) *StyledLogger {
	plain := slog.New(slog.NewTextHandler(buf, nil))
	return NewStyledLogger(plain, theme.Default())
}

func TestWithProxyAttachesField(t *testing.T) {
	buf := &bytes.Buffer{}
	sl := newTestStyledLogger(buf)
	sl.WithProxy("p1").Info("dispatch attempted")

	if !strings.Contains(buf.String(), "proxy_id=p1") {
		t.Fatalf("expected proxy_id field in output, got: %s", buf.String())
	}
}

func TestWarnBreakerTransitionLogsBothStates(t *testing.T) {
	buf := &bytes.Buffer{}
	sl := newTestStyledLogger(buf)
	sl.WarnBreakerTransition("p1", domain.BreakerClosed, domain.BreakerOpen)

	out := buf.String()
	if !strings.Contains(out, "p1") {
		t.Fatalf("expected proxy id in output, got: %s", out)
	}
	if !strings.Contains(out, "CLOSED") || !strings.Contains(out, "OPEN") {
		t.Fatalf("expected both states rendered, got: %s", out)
	}
}

func TestInfoRotationLogsTransition(t *testing.T) {
	buf := &bytes.Buffer{}
	sl := newTestStyledLogger(buf)
	sl.InfoRotation("round_robin", "weighted")

	out := buf.String()
	if !strings.Contains(out, "round_robin") || !strings.Contains(out, "weighted") {
		t.Fatalf("expected both strategy names rendered, got: %s", out)
	}
}
