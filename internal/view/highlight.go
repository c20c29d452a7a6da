package view

import (
	"html/template"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const commandStyle = "monokai"

var commandFormatter = html.New(html.WithClasses(false), html.PreventSurroundingPre(true))

// Highlight renders a generated Redis command as inline-styled HTML. Redis
// CLI syntax is close enough to shell for chroma's bash lexer; anything the
// lexer cannot handle is escaped as plain text.
func Highlight(command string) template.HTML {
	lexer := lexers.Get("bash")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(commandStyle)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, command)
	if err != nil {
		return plain(command)
	}

	var buf strings.Builder
	if err := commandFormatter.Format(&buf, style, iterator); err != nil {
		return plain(command)
	}
	return template.HTML(buf.String())
}

func plain(s string) template.HTML {
	return template.HTML(template.HTMLEscapeString(s))
}
