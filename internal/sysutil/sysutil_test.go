package sysutil

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestConfigureLogger_SetsLevelAndContextFallback(t *testing.T) {
	origLevel := zerolog.GlobalLevel()
	origLogger := log.Logger
	origCtx := zerolog.DefaultContextLogger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
		zerolog.DefaultContextLogger = origCtx
	})

	for _, pretty := range []bool{false, true} {
		t.Setenv("NO_COLOR", "1")
		l := ConfigureLogger("warn", pretty)
		if zerolog.GlobalLevel() != zerolog.WarnLevel {
			t.Fatalf("pretty=%v level = %v", pretty, zerolog.GlobalLevel())
		}
		if l.GetLevel() != zerolog.TraceLevel {
			t.Fatalf("logger should not pin its own level, got %v", l.GetLevel())
		}
		if zerolog.DefaultContextLogger == nil {
			t.Fatalf("pretty=%v: DefaultContextLogger not set", pretty)
		}
		// a bare context resolves to the configured logger, not the disabled one
		if log.Ctx(context.Background()).GetLevel() == zerolog.Disabled {
			t.Fatalf("pretty=%v: log.Ctx falls back to a disabled logger", pretty)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := map[string]zerolog.Level{
		"debug":     zerolog.DebugLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"trace":     zerolog.TraceLevel,
		"":          zerolog.InfoLevel,
		"Warning":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"panic":     zerolog.PanicLevel,
		"verbose":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		zerolog.SetGlobalLevel(zerolog.Disabled)
		SetLogLevel(in)
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("SetLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEnvHelpers(t *testing.T) {
	for v, want := range map[string]bool{
		"1": true, " yes ": true, "Y": true, "On": true, "TRUE": true,
		"": false, "0": false, "off": false, "n": false, "maybe": false,
	} {
		if IsTruthy(v) != want {
			t.Errorf("IsTruthy(%q) != %v", v, want)
		}
	}

	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("no args: %q", got)
	}
	if got := FirstNonEmpty(" ", "\t"); got != "" {
		t.Fatalf("blanks: %q", got)
	}
	if got := FirstNonEmpty("", "  v1.4.0 ", "dev"); got != "  v1.4.0 " {
		t.Fatalf("picked %q", got)
	}
}
