package readback

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"neurodeck/internal/render"
)

func screenState(t *testing.T, html string) *render.State {
	t.Helper()
	s := render.NewState()
	args, err := render.ValidateArgs(map[string]any{"html": html})
	if err != nil {
		t.Fatalf("ValidateArgs: %v", err)
	}
	s.Apply(args, "setup-call")
	return s
}

func TestValidateArgsDefaults(t *testing.T) {
	a, err := ValidateArgs(map[string]any{})
	if err != nil {
		t.Fatalf("ValidateArgs({}) failed: %v", err)
	}
	if a.Mode != ModeMeta {
		t.Errorf("mode = %q, want meta", a.Mode)
	}
	if a.Recovery {
		t.Error("recovery should default to false")
	}
	if a.MaxChars != DefaultMaxChars {
		t.Errorf("max_chars = %d, want %d", a.MaxChars, DefaultMaxChars)
	}
}

func TestValidateArgsUnknownMode(t *testing.T) {
	_, err := ValidateArgs(map[string]any{"mode": "full_html"})
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if !strings.Contains(err.Error(), "mode") {
		t.Errorf("error %q should cite mode", err)
	}
}

func TestValidateArgsClampsMaxChars(t *testing.T) {
	a, err := ValidateArgs(map[string]any{"max_chars": float64(9999999)})
	if err != nil {
		t.Fatalf("ValidateArgs failed: %v", err)
	}
	if a.MaxChars != MaxCharsCeiling {
		t.Errorf("max_chars = %d, want ceiling %d", a.MaxChars, MaxCharsCeiling)
	}
}

func TestValidateArgsLimitedUsesHostBounds(t *testing.T) {
	lim := Limits{DefaultMaxChars: 500, MaxCharsCeiling: 1000}

	a, err := ValidateArgsLimited(map[string]any{}, lim)
	if err != nil {
		t.Fatalf("ValidateArgsLimited failed: %v", err)
	}
	if a.MaxChars != 500 {
		t.Errorf("default max_chars = %d, want 500", a.MaxChars)
	}

	a, err = ValidateArgsLimited(map[string]any{"max_chars": float64(4000)}, lim)
	if err != nil {
		t.Fatalf("ValidateArgsLimited failed: %v", err)
	}
	if a.MaxChars != 1000 {
		t.Errorf("clamped max_chars = %d, want 1000", a.MaxChars)
	}

	// Zero fields fall back to the built-ins.
	a, err = ValidateArgsLimited(map[string]any{}, Limits{})
	if err != nil {
		t.Fatalf("ValidateArgsLimited failed: %v", err)
	}
	if a.MaxChars != DefaultMaxChars {
		t.Errorf("fallback max_chars = %d, want %d", a.MaxChars, DefaultMaxChars)
	}
}

func TestRunBeforeFirstEmitDenied(t *testing.T) {
	usage := NewUsageState()
	_, err := Run(&Args{Mode: ModeMeta}, render.NewState(), usage)
	if err == nil {
		t.Fatal("expected denial before first emit_screen")
	}
	if !strings.Contains(err.Error(), "before first emit_screen") {
		t.Errorf("error %q should cite the missing first emit_screen", err)
	}
	if usage.ReadCount != 0 {
		t.Error("denied call must not consume budget")
	}
}

func TestRunBudgetSequence(t *testing.T) {
	rs := screenState(t, "<div>screen</div>")
	usage := NewUsageState()

	// Call 1: free.
	if _, err := Run(&Args{Mode: ModeMeta}, rs, usage); err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	if usage.ReadCount != 1 {
		t.Fatalf("readCount = %d, want 1", usage.ReadCount)
	}

	// Call 2 without recovery: denied citing recovery=true.
	_, err := Run(&Args{Mode: ModeMeta}, rs, usage)
	if err == nil {
		t.Fatal("second read without recovery should be denied")
	}
	if !strings.Contains(err.Error(), "recovery=true") {
		t.Errorf("error %q should cite recovery=true", err)
	}
	if usage.ReadCount != 1 {
		t.Error("denied call must not consume budget")
	}

	// Call 2 with recovery: accepted.
	if _, err := Run(&Args{Mode: ModeMeta, Recovery: true}, rs, usage); err != nil {
		t.Fatalf("recovery read failed: %v", err)
	}
	if usage.ReadCount != 2 {
		t.Fatalf("readCount = %d, want 2", usage.ReadCount)
	}

	// Call 3: denied regardless of recovery.
	for _, recovery := range []bool{false, true} {
		_, err := Run(&Args{Mode: ModeMeta, Recovery: recovery}, rs, usage)
		if err == nil {
			t.Fatalf("third read (recovery=%v) should be denied", recovery)
		}
		if !strings.Contains(err.Error(), "budget exceeded") {
			t.Errorf("error %q should cite budget exceeded", err)
		}
	}
}

func TestRunNeverMutatesRenderState(t *testing.T) {
	rs := screenState(t, `<div id="app"><button data-action-id="go">Go</button></div>`)
	before := *rs

	usage := NewUsageState()
	for _, mode := range []Mode{ModeMeta, ModeOutline, ModeSnippet} {
		// Fresh budget each time so every mode actually runs.
		u := NewUsageState()
		if _, err := Run(&Args{Mode: mode, MaxChars: DefaultMaxChars}, rs, u); err != nil {
			t.Fatalf("mode %s failed: %v", mode, err)
		}
	}
	_, _ = Run(&Args{Mode: ModeMeta}, rs, usage)

	if diff := cmp.Diff(before, *rs); diff != "" {
		t.Errorf("render state mutated by read_screen (-before +after):\n%s", diff)
	}
}

func TestMetaPayload(t *testing.T) {
	rs := screenState(t, `<div><button data-action-id="save">Save</button><a id="home" href="/">Home</a></div>`)
	usage := NewUsageState()

	out, err := Run(&Args{Mode: ModeMeta}, rs, usage)
	if err != nil {
		t.Fatalf("meta read failed: %v", err)
	}
	if !strings.Contains(out, "revision=1") {
		t.Errorf("payload missing revision: %q", out)
	}
	if !strings.Contains(out, "hash=sha256:") {
		t.Errorf("payload missing fingerprint: %q", out)
	}
	if !strings.Contains(out, "interaction_ids=2") {
		t.Errorf("payload should count 2 interaction ids: %q", out)
	}
	if strings.Contains(out, "<div>") {
		t.Error("meta payload must not include raw HTML")
	}
}

func TestOutlinePayloadOrderAndCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<main>")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, `<button data-action-id="act-%02d">x</button>`, i)
	}
	b.WriteString("</main>")

	rs := screenState(t, b.String())
	usage := NewUsageState()

	out, err := Run(&Args{Mode: ModeOutline}, rs, usage)
	if err != nil {
		t.Fatalf("outline read failed: %v", err)
	}

	shown := 0
	for i := 0; i < 50; i++ {
		if strings.Contains(out, fmt.Sprintf("act-%02d", i)) {
			shown++
		}
	}
	if shown > OutlineCap {
		t.Errorf("outline shows %d ids, cap is %d", shown, OutlineCap)
	}

	// Document order: act-00 before act-01.
	if strings.Index(out, "act-00") > strings.Index(out, "act-01") {
		t.Error("interaction ids out of document order")
	}
	// The tail past the cap must be absent.
	if strings.Contains(out, "act-49") {
		t.Error("ids past the cap should be dropped")
	}
}

func TestOutlineStructure(t *testing.T) {
	rs := screenState(t, `<main><h1>Dashboard</h1><section id="stats"><h2>Stats</h2></section></main>`)
	usage := NewUsageState()

	out, err := Run(&Args{Mode: ModeOutline}, rs, usage)
	if err != nil {
		t.Fatalf("outline read failed: %v", err)
	}
	if !strings.Contains(out, "<h1> Dashboard") {
		t.Errorf("outline missing heading text: %q", out)
	}
	if !strings.Contains(out, `<section id="stats">`) {
		t.Errorf("outline missing section id: %q", out)
	}
}

func TestSnippetPayloadLength(t *testing.T) {
	long := "<div>" + strings.Repeat("x", 5000) + "</div>"
	rs := screenState(t, long)

	for _, maxChars := range []int{10, 100, DefaultMaxChars} {
		usage := NewUsageState()
		out, err := Run(&Args{Mode: ModeSnippet, MaxChars: maxChars}, rs, usage)
		if err != nil {
			t.Fatalf("snippet read failed: %v", err)
		}
		lines := strings.SplitN(out, "\n", 2)
		if len(lines) != 2 {
			t.Fatalf("snippet payload missing body: %q", out)
		}
		if len(lines[1]) > maxChars {
			t.Errorf("snippet body %d chars exceeds max_chars %d", len(lines[1]), maxChars)
		}
		if !strings.Contains(lines[0], "truncated=true") {
			t.Errorf("header should mark truncation: %q", lines[0])
		}
	}
}

func TestSnippetTruncatesOnRuneBoundary(t *testing.T) {
	// Each arrow is a 3-byte rune; a byte-wise cut would land mid-rune.
	long := "<p>" + strings.Repeat("→", 500) + "</p>"
	rs := screenState(t, long)

	usage := NewUsageState()
	out, err := Run(&Args{Mode: ModeSnippet, MaxChars: 10}, rs, usage)
	if err != nil {
		t.Fatalf("snippet read failed: %v", err)
	}

	lines := strings.SplitN(out, "\n", 2)
	if len(lines) != 2 {
		t.Fatalf("snippet payload missing body: %q", out)
	}
	if !utf8.ValidString(lines[1]) {
		t.Errorf("snippet body is not valid UTF-8: %q", lines[1])
	}
	if n := utf8.RuneCountInString(lines[1]); n != 10 {
		t.Errorf("snippet body = %d chars, want 10", n)
	}
	if !strings.Contains(lines[0], "chars=10/") {
		t.Errorf("header should count characters: %q", lines[0])
	}
}

func TestUsageStateFreshPerTurn(t *testing.T) {
	rs := screenState(t, "<p>screen</p>")

	// Turn 1 exhausts the budget.
	turn1 := NewUsageState()
	if _, err := Run(&Args{Mode: ModeMeta}, rs, turn1); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(&Args{Mode: ModeMeta, Recovery: true}, rs, turn1); err != nil {
		t.Fatal(err)
	}

	// Turn 2 starts fresh by construction.
	turn2 := NewUsageState()
	if _, err := Run(&Args{Mode: ModeMeta}, rs, turn2); err != nil {
		t.Errorf("fresh turn should have budget: %v", err)
	}
}
