// Package markup renders the small BBCode subset allowed in message content.
package markup

import (
	"html"
	"html/template"
	"strings"
)

type tag struct {
	name        string
	open, close string
}

var tags = []tag{
	{"b", "[b]", "[/b]"},
	{"i", "[i]", "[/i]"},
	{"u", "[u]", "[/u]"},
}

// Substitute replaces every bracket marker with its HTML tag, pair by pair
// in the order b, i, u. Replacement resumes after the inserted text, so
// its output contains no markers and substituting it again is a no-op.
// Substitute does not escape; use Render for untrusted content.
func Substitute(s string) string {
	for _, t := range tags {
		s = replace(s, t.open, "<"+t.name+">")
		s = replace(s, t.close, "</"+t.name+">")
	}
	return s
}

func replace(expr, a, b string) string {
	var sb strings.Builder
	for {
		i := strings.Index(expr, a)
		if i < 0 {
			sb.WriteString(expr)
			return sb.String()
		}
		sb.WriteString(expr[:i])
		sb.WriteString(b)
		expr = expr[i+len(a):]
	}
}

// Render escapes content, substitutes markers and balances the resulting
// tags. A closing marker without an open partner is kept as literal text;
// tags left open are closed at the end.
func Render(content string) template.HTML {
	return template.HTML(balance(Substitute(html.EscapeString(content))))
}

func balance(s string) string {
	var (
		sb    strings.Builder
		stack []tag
	)

	for len(s) > 0 {
		i := strings.IndexByte(s, '<')
		if i < 0 {
			sb.WriteString(s)
			break
		}
		sb.WriteString(s[:i])
		s = s[i:]

		t, closing, n := matchTag(s)
		if n == 0 {
			// Escaped input cannot contain '<', so this is unreachable
			// for Render; keep the byte for direct callers.
			sb.WriteByte('<')
			s = s[1:]
			continue
		}
		s = s[n:]

		if !closing {
			stack = append(stack, t)
			sb.WriteString("<" + t.name + ">")
			continue
		}

		depth := -1
		for j := len(stack) - 1; j >= 0; j-- {
			if stack[j].name == t.name {
				depth = j
				break
			}
		}
		if depth < 0 {
			sb.WriteString(t.close)
			continue
		}
		// Close inner tags, close the target, then reopen the inner ones
		// so that overlapping markers still nest correctly.
		inner := stack[depth+1:]
		for j := len(inner) - 1; j >= 0; j-- {
			sb.WriteString("</" + inner[j].name + ">")
		}
		sb.WriteString("</" + t.name + ">")
		for _, it := range inner {
			sb.WriteString("<" + it.name + ">")
		}
		stack = append(stack[:depth:depth], inner...)
	}

	for j := len(stack) - 1; j >= 0; j-- {
		sb.WriteString("</" + stack[j].name + ">")
	}
	return sb.String()
}

func matchTag(s string) (tag, bool, int) {
	for _, t := range tags {
		if open := "<" + t.name + ">"; strings.HasPrefix(s, open) {
			return t, false, len(open)
		}
		if closeTag := "</" + t.name + ">"; strings.HasPrefix(s, closeTag) {
			return t, true, len(closeTag)
		}
	}
	return tag{}, false, 0
}

// Plain strips the markers, for terminals.
func Plain(content string) string {
	for _, t := range tags {
		content = strings.ReplaceAll(content, t.open, "")
		content = strings.ReplaceAll(content, t.close, "")
	}
	return content
}
