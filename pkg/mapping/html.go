package mapping

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const emailWrapperOpen = `<div style="font-family: Arial, Helvetica, sans-serif; font-size: 16px; line-height: 1.6; color: #333333;">`

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)

	htmlTagPattern = regexp.MustCompile(`(?i)<\s*(p|div|br|span|a|strong|b|em|i|u|ul|ol|li|h[1-6]|table|tr|td|img|html|body|center|font)(\s[^>]*)?/?>`)
)

// IsAlreadyHTML reports whether text already contains HTML markup
func IsAlreadyHTML(text string) bool {
	return htmlTagPattern.MatchString(text)
}

// ConvertEmailToHTML renders markdown email copy to HTML wrapped in a styled div.
// Single newlines become line breaks.
func ConvertEmailToHTML(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		buf.Reset()
		buf.WriteString("<p>")
		buf.WriteString(strings.ReplaceAll(html.EscapeString(text), "\n", "<br>\n"))
		buf.WriteString("</p>")
	}

	return emailWrapperOpen + strings.TrimSpace(buf.String()) + "</div>"
}

// EmailBody converts body to HTML unless it already is
func EmailBody(body string) string {
	if strings.TrimSpace(body) == "" || IsAlreadyHTML(body) {
		return body
	}
	return ConvertEmailToHTML(body)
}
