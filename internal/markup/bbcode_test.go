package markup

import (
	"strings"
	"testing"
)

func TestSubstituteNestedMarkers(t *testing.T) {
	got := Substitute("[b]a[i]b[/i]c[/b]")
	want := "<b>a<i>b</i>c</b>"
	if got != want {
		t.Errorf("Expected %q but got %q", want, got)
	}
	if strings.ContainsAny(got, "[]") {
		t.Errorf("Expected no leftover bracket tokens in %q", got)
	}
}

func TestSubstituteAdjacentMarkers(t *testing.T) {
	got := Substitute("[b][/b][i][/i][u]x[/u][b]y[/b]")
	want := "<b></b><i></i><u>x</u><b>y</b>"
	if got != want {
		t.Errorf("Expected %q but got %q", want, got)
	}
}

func TestSubstituteIsRepeatable(t *testing.T) {
	inputs := []string{
		"[b]a[i]b[/i]c[/b]",
		"[u][u]double[/u][/u]",
		"plain text",
		"[b]unclosed",
	}
	for _, in := range inputs {
		once := Substitute(in)
		twice := Substitute(once)
		if once != twice {
			t.Errorf("Expected Substitute to be a no-op on its output for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestSubstituteLeavesUnknownMarkers(t *testing.T) {
	got := Substitute("[s]strike[/s] [B]upper[/B]")
	if got != "[s]strike[/s] [B]upper[/B]" {
		t.Errorf("Expected unknown markers untouched but got %q", got)
	}
}

func TestRenderEscapesBeforeSubstitution(t *testing.T) {
	got := string(Render(`[b]<script>alert("x")</script>[/b]`))
	want := "<b>&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</b>"
	if got != want {
		t.Errorf("Expected %q but got %q", want, got)
	}
}

func TestRenderDoesNotTrustInjectedTags(t *testing.T) {
	got := string(Render("<b>not markup</b>"))
	if strings.Contains(got, "<b>") {
		t.Errorf("Expected raw tags to be escaped but got %q", got)
	}
}

func TestRenderClosesOpenTags(t *testing.T) {
	got := string(Render("[b]bold [i]both"))
	want := "<b>bold <i>both</i></b>"
	if got != want {
		t.Errorf("Expected %q but got %q", want, got)
	}
}

func TestRenderKeepsStrayClosingMarker(t *testing.T) {
	got := string(Render("text[/u] more"))
	want := "text[/u] more"
	if got != want {
		t.Errorf("Expected %q but got %q", want, got)
	}
}

func TestRenderNestsOverlappingMarkers(t *testing.T) {
	got := string(Render("[b]x[i]y[/b]z[/i]"))
	want := "<b>x<i>y</i></b><i>z</i>"
	if got != want {
		t.Errorf("Expected %q but got %q", want, got)
	}
}

func TestPlainStripsMarkers(t *testing.T) {
	got := Plain("[b]a[i]b[/i]c[/b]")
	if got != "abc" {
		t.Errorf("Expected %q but got %q", "abc", got)
	}
}
