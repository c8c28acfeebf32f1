package debug

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "providers", map[string]bool{"providers": true}},
		{"multiple", "providers,lm", map[string]bool{"providers": true, "lm": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " retry , cache ", map[string]bool{"retry": true, "cache": true}},
		{"uppercase normalized", "TOKENIZER,Cache", map[string]bool{"tokenizer": true, "cache": true}},
		{"empty segments", "providers,,lm", map[string]bool{"providers": true, "lm": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("len(got) = %d, want %d", len(got), len(tt.want))
			}
			for k := range tt.want {
				if !got[k] {
					t.Errorf("category %q missing", k)
				}
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("providers,retry")
	if !Enabled("providers") || !Enabled("retry") {
		t.Error("configured categories should be enabled")
	}
	if Enabled("cache") {
		t.Error("cache should not be enabled")
	}

	categories = parseCategories("all")
	if !Enabled("anything") {
		t.Error("anything should be enabled via 'all'")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{" info ", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("this is a long prompt", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q", got)
	}
}

func TestInitWritesToOutput(t *testing.T) {
	origCats, origDefault := categories, slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origDefault)
		rawOut = os.Stderr
	}()
	t.Setenv("LMSCORE_DEBUG", "")
	t.Setenv("LMSCORE_LOG_LEVEL", "")

	var buf bytes.Buffer
	Init(Options{Categories: "lm", Level: "TRACE", Format: "json", Output: &buf})

	Log("lm", "chunk scored", "size", 20)
	Log("cache", "should be dropped")
	Raw("lm", `{"prompt":"x"}`)

	out := buf.String()
	if !strings.Contains(out, `"msg":"chunk scored"`) {
		t.Errorf("expected JSON debug line, got:\n%s", out)
	}
	if strings.Contains(out, "should be dropped") {
		t.Errorf("disabled category was logged:\n%s", out)
	}
	if !strings.Contains(out, `{"prompt":"x"}`) {
		t.Errorf("expected raw body at TRACE, got:\n%s", out)
	}
}

func TestInitEnvOverridesOptions(t *testing.T) {
	origCats, origDefault := categories, slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origDefault)
	}()
	t.Setenv("LMSCORE_DEBUG", "cache")
	t.Setenv("LMSCORE_LOG_LEVEL", "ERROR")

	var buf bytes.Buffer
	Init(Options{Categories: "lm", Level: "DEBUG", Output: &buf})

	if Enabled("lm") || !Enabled("cache") {
		t.Errorf("env categories should win, got %v", categories)
	}
	slog.Warn("not shown")
	if buf.Len() != 0 {
		t.Errorf("ERROR level from env should suppress warnings, got %q", buf.String())
	}
}
