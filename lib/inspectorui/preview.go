// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspectorui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// previewRule names an attribute whose value is source text worth
// showing in full below the attribute list.
type previewRule struct {
	attribute string

	// language is the Chroma lexer name; empty means markdown.
	language string

	// when, if set, must hold for the record.
	when func(record objectgraph.Record) bool
}

// previewRules are tried in order; the first attribute present wins.
var previewRules = []previewRule{
	{attribute: "program", language: "javascript"},
	{attribute: "html", language: "html"},
	{attribute: "styleSheet", language: "css"},
	{attribute: "text", when: func(record objectgraph.Record) bool {
		return record.Attributes["textFormat"] == "markdown"
	}},
}

// previewRenderer forces the ANSI256 profile: the preview is always
// drawn inside the bubbletea UI, and auto-detection would produce
// uncolored output when stdout is not yet the terminal.
var previewRenderer = func() *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)
	return renderer
}()

// previewLines renders the preview of record, or returns nil when no
// rule matches.
func previewLines(record objectgraph.Record, width int, theme Theme) []string {
	for _, rule := range previewRules {
		value, ok := record.Attributes[rule.attribute]
		if !ok || value == "" {
			continue
		}
		if rule.when != nil && !rule.when(record) {
			continue
		}
		label := previewRenderer.NewStyle().Foreground(theme.LabelForeground)
		lines := []string{"", " " + label.Render(rule.attribute)}
		var body []string
		if rule.language == "" {
			body = renderMarkdownLines(value, theme, width-2)
		} else {
			body = strings.Split(highlightCode(value, rule.language, theme), "\n")
		}
		for _, line := range body {
			lines = append(lines, ansi.Truncate("  "+line, width, "…"))
		}
		return lines
	}
	return nil
}

// highlightCode uses Chroma to syntax-highlight code. Unknown languages
// and Chroma errors fall back to faint plain text.
func highlightCode(code, language string, theme Theme) string {
	code = strings.TrimRight(code, "\n")
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return previewRenderer.NewStyle().Foreground(theme.FaintText).Render(code)
	}
	return strings.TrimRight(buffer.String(), "\n")
}

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func markdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParserInstance
}

// renderMarkdownLines renders label text written in markdown as styled
// terminal lines wrapped to width. Only the constructs a rich-text
// label can use are styled: headings, emphasis, code, lists and rules.
func renderMarkdownLines(input string, theme Theme, width int) []string {
	source := []byte(input)
	document := markdownParser().Parser().Parse(text.NewReader(source))

	renderer := &markdownLines{source: source, theme: theme, width: max(width, 8)}
	ast.Walk(document, renderer.walk)
	renderer.flush()

	lines := renderer.lines
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// markdownLines accumulates inline content until its block closes,
// then wraps it into lines.
type markdownLines struct {
	source []byte
	theme  Theme
	width  int

	lines  []string
	inline strings.Builder

	// Counters rather than booleans so nested emphasis works.
	heading int
	bold    int
	italic  int

	// counters holds one entry per open list: the next number of an
	// ordered list, or zero for a bullet list.
	counters []int
	bullet   string
}

func (renderer *markdownLines) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := node.(type) {
	case *ast.Heading:
		if entering {
			renderer.heading++
		} else {
			renderer.heading--
			renderer.flush()
			renderer.blank()
		}
	case *ast.Paragraph:
		if !entering {
			renderer.flush()
			if len(renderer.counters) == 0 {
				renderer.blank()
			}
		}
	case *ast.TextBlock:
		if !entering {
			renderer.flush()
		}
	case *ast.Text:
		if entering {
			renderer.inline.WriteString(renderer.styled(string(node.Segment.Value(renderer.source))))
			switch {
			case node.HardLineBreak():
				renderer.flush()
			case node.SoftLineBreak():
				renderer.inline.WriteByte(' ')
			}
		}
	case *ast.Emphasis:
		delta := 1
		if !entering {
			delta = -1
		}
		if node.Level >= 2 {
			renderer.bold += delta
		} else {
			renderer.italic += delta
		}
	case *ast.CodeSpan:
		if entering {
			code := previewRenderer.NewStyle().Foreground(renderer.theme.FaintText)
			renderer.inline.WriteString(code.Render(renderer.childText(node)))
			return ast.WalkSkipChildren, nil
		}
	case *ast.FencedCodeBlock:
		if entering {
			renderer.codeBlock(node, string(node.Language(renderer.source)))
			return ast.WalkSkipChildren, nil
		}
	case *ast.CodeBlock:
		if entering {
			renderer.codeBlock(node, "")
			return ast.WalkSkipChildren, nil
		}
	case *ast.List:
		if entering {
			counter := 0
			if node.IsOrdered() {
				counter = max(node.Start, 1)
			}
			renderer.counters = append(renderer.counters, counter)
		} else {
			renderer.counters = renderer.counters[:len(renderer.counters)-1]
			if len(renderer.counters) == 0 {
				renderer.blank()
			}
		}
	case *ast.ListItem:
		if entering {
			renderer.flush()
			top := len(renderer.counters) - 1
			if renderer.counters[top] > 0 {
				renderer.bullet = fmt.Sprintf("%d. ", renderer.counters[top])
				renderer.counters[top]++
			} else {
				renderer.bullet = "• "
			}
		}
	case *ast.ThematicBreak:
		if entering {
			renderer.flush()
			rule := previewRenderer.NewStyle().Foreground(renderer.theme.BorderColor)
			renderer.lines = append(renderer.lines, rule.Render(strings.Repeat("─", renderer.width)))
			renderer.blank()
		}
	}
	return ast.WalkContinue, nil
}

// styled applies the emphasis in effect to a run of text.
func (renderer *markdownLines) styled(content string) string {
	if renderer.heading == 0 && renderer.bold == 0 && renderer.italic == 0 {
		return content
	}
	style := previewRenderer.NewStyle().
		Bold(renderer.heading > 0 || renderer.bold > 0).
		Italic(renderer.italic > 0)
	if renderer.heading > 0 {
		style = style.Foreground(renderer.theme.HeaderForeground)
	}
	return style.Render(content)
}

func (renderer *markdownLines) childText(node ast.Node) string {
	var builder strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if textNode, ok := child.(*ast.Text); ok {
			builder.Write(textNode.Segment.Value(renderer.source))
		}
	}
	return builder.String()
}

func (renderer *markdownLines) codeBlock(node ast.Node, language string) {
	renderer.flush()
	var code strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		code.Write(segment.Value(renderer.source))
	}
	for _, line := range strings.Split(highlightCode(code.String(), language, renderer.theme), "\n") {
		renderer.lines = append(renderer.lines, renderer.indent()+"  "+line)
	}
	renderer.blank()
}

// indent is the left margin of nested list content.
func (renderer *markdownLines) indent() string {
	if len(renderer.counters) <= 1 {
		return ""
	}
	return strings.Repeat("  ", len(renderer.counters)-1)
}

// flush wraps the accumulated inline content into lines. The first line
// carries the pending list bullet; continuation lines align under it.
func (renderer *markdownLines) flush() {
	content := renderer.inline.String()
	renderer.inline.Reset()
	if strings.TrimSpace(ansi.Strip(content)) == "" {
		return
	}
	indent := renderer.indent()
	first := indent + renderer.bullet
	rest := indent + strings.Repeat(" ", ansi.StringWidth(renderer.bullet))
	renderer.bullet = ""

	wrapped := ansi.Wordwrap(content, max(renderer.width-ansi.StringWidth(first), 1), "")
	for index, line := range strings.Split(wrapped, "\n") {
		prefix := rest
		if index == 0 {
			prefix = first
		}
		renderer.lines = append(renderer.lines, prefix+line)
	}
}

// blank separates blocks with one empty line.
func (renderer *markdownLines) blank() {
	if count := len(renderer.lines); count > 0 && renderer.lines[count-1] != "" {
		renderer.lines = append(renderer.lines, "")
	}
}
