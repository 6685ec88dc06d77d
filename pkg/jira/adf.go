package jira

import (
	"fmt"
	"strings"
)

// ADFToPlainText converts an Atlassian Document Format tree, as returned by
// API v3 for descriptions, to plain text. Strings pass through unchanged and
// anything else yields "".
//
// Block nodes end with a newline; lists are indented two spaces per level
// with "• " or "N. " markers; blockquotes are prefixed with "> "; table rows
// render as "| a | b |"; media becomes a [File: ...] or [Image: ...]
// placeholder. Unknown nodes contribute their children's text.
func ADFToPlainText(adf interface{}) string {
	switch v := adf.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}:
		var w adfWriter
		w.node(v, 0)
		return strings.TrimRight(w.String(), "\n")
	default:
		return ""
	}
}

// PlainTextToADF wraps plain text in a minimal ADF document, one paragraph
// per line. Empty text yields nil so the field can be left out.
func PlainTextToADF(text string) map[string]interface{} {
	if text == "" {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	content := make([]interface{}, 0, len(lines))
	for _, line := range lines {
		inline := []interface{}{}
		if line != "" {
			inline = append(inline, map[string]interface{}{"type": "text", "text": line})
		}
		content = append(content, map[string]interface{}{
			"type":    "paragraph",
			"content": inline,
		})
	}

	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}

type adfWriter struct {
	strings.Builder
}

func children(node map[string]interface{}) []map[string]interface{} {
	raw, _ := node["content"].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func attr(node map[string]interface{}, key string) string {
	attrs, _ := node["attrs"].(map[string]interface{})
	s, _ := attrs[key].(string)
	return s
}

func (w *adfWriter) children(node map[string]interface{}, depth int) {
	for _, child := range children(node) {
		w.node(child, depth)
	}
}

func (w *adfWriter) node(node map[string]interface{}, depth int) {
	switch nodeType, _ := node["type"].(string); nodeType {
	case "text":
		text, _ := node["text"].(string)
		w.WriteString(text)

	case "hardBreak":
		w.WriteString("\n")

	case "paragraph", "heading":
		w.children(node, depth)
		w.WriteString("\n")

	case "codeBlock":
		if lang := attr(node, "language"); lang != "" {
			fmt.Fprintf(w, "[%s]\n", lang)
		}
		w.children(node, depth)
		w.WriteString("\n")

	case "blockquote":
		var inner adfWriter
		inner.children(node, depth)
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			w.WriteString("> " + line + "\n")
		}

	case "bulletList":
		w.list(node, depth, false)

	case "orderedList":
		w.list(node, depth, true)

	case "rule":
		w.WriteString("---\n")

	case "table":
		for _, row := range children(node) {
			w.tableRow(row)
		}
		w.WriteString("\n")

	case "mediaSingle", "mediaGroup":
		w.media(node)

	case "inlineCard":
		w.WriteString(attr(node, "url"))

	case "mention":
		w.WriteString(attr(node, "text"))

	case "emoji":
		w.WriteString(attr(node, "shortName"))

	default:
		w.children(node, depth)
	}
}

func (w *adfWriter) list(node map[string]interface{}, depth int, ordered bool) {
	indent := strings.Repeat("  ", depth)

	for i, item := range children(node) {
		marker := "• "
		if ordered {
			marker = fmt.Sprintf("%d. ", i+1)
		}
		w.WriteString(indent + marker)

		var text adfWriter
		flush := func() {
			if text.Len() == 0 {
				return
			}
			body := strings.TrimRight(text.String(), "\n")
			w.WriteString(strings.ReplaceAll(body, "\n", "\n"+indent+"  "))
			w.WriteString("\n")
			text.Reset()
		}

		for _, child := range children(item) {
			childType, _ := child["type"].(string)
			if childType == "bulletList" || childType == "orderedList" {
				flush()
				w.node(child, depth+1)
				continue
			}
			text.node(child, depth+1)
		}
		flush()
	}
}

func (w *adfWriter) tableRow(row map[string]interface{}) {
	cells := []string{}
	for _, cell := range children(row) {
		var buf adfWriter
		buf.children(cell, 0)
		cells = append(cells, strings.ReplaceAll(strings.TrimSpace(buf.String()), "\n", " "))
	}
	w.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func (w *adfWriter) media(node map[string]interface{}) {
	items := children(node)
	if len(items) == 0 {
		w.WriteString("[Media]\n")
		return
	}

	for _, item := range items {
		if t, _ := item["type"].(string); t != "media" {
			continue
		}
		switch attr(item, "type") {
		case "file":
			if alt := attr(item, "alt"); alt != "" {
				fmt.Fprintf(w, "[File: %s]\n", alt)
			} else {
				w.WriteString("[File]\n")
			}
		case "external":
			if u := attr(item, "url"); u != "" {
				fmt.Fprintf(w, "[Image: %s]\n", u)
			} else {
				w.WriteString("[Image]\n")
			}
		default:
			w.WriteString("[Media]\n")
		}
	}
}
