// Package view renders the chat page and its transcript from a session
// snapshot.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"redisquery-backend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadingText is shown while a turn is in flight.
const LoadingText = "Processing..."

// ContextField is one labelled textarea of the context panel.
type ContextField struct {
	Key   string
	Label string
	Hint  string
	Value string
}

// Entry is one rendered transcript message.
type Entry struct {
	User        bool
	Text        string
	Command     template.HTML
	Explanation string
	Pending     bool
}

type Transcript struct {
	Entries []Entry
	Loading bool
	Error   string
}

type Page struct {
	Token            string
	Fields           []ContextField
	Examples         []models.ExampleSummary
	ExampleIndex     int
	Input            string
	Transcript       Transcript
	DiscoveryEnabled bool
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"highlight": Highlight,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Page(w io.Writer, p Page) error {
	return r.tmpl.ExecuteTemplate(w, "page.html", p)
}

func (r *Renderer) Transcript(w io.Writer, t Transcript) error {
	return r.tmpl.ExecuteTemplate(w, "transcript", t)
}

// Fields lays out the four context fields with the command that helps fill
// each one in.
func Fields(ctx models.SchemaContext) []ContextField {
	return []ContextField{
		{Key: "key_patterns", Label: "1. Key Patterns", Hint: "SCAN 0 MATCH * COUNT 10", Value: ctx.KeyPatterns},
		{Key: "sample_data", Label: "2. Sample Data", Hint: "HGETALL <key> or JSON.GET <key>", Value: ctx.SampleData},
		{Key: "index_info", Label: "3. Search Indexes", Hint: "FT.INFO <index-name>", Value: ctx.IndexInfo},
		{Key: "other_metadata", Label: "4. System Context", Hint: "INFO Modules / TS.INFO <key>", Value: ctx.OtherMetadata},
	}
}

func NewTranscript(state models.ConversationState) Transcript {
	t := Transcript{Loading: state.Loading, Error: state.Error}
	for _, m := range state.Messages {
		switch {
		case m.Role == models.RoleUser:
			t.Entries = append(t.Entries, Entry{User: true, Text: m.Content})
		case m.Pending():
			t.Entries = append(t.Entries, Entry{Pending: true})
		default:
			t.Entries = append(t.Entries, Entry{
				Command:     Highlight(m.Result.Command),
				Explanation: m.Result.Explanation,
			})
		}
	}
	return t
}

func NewPage(token string, state models.ConversationState, examples []models.ExampleSummary, discovery bool) Page {
	return Page{
		Token:            token,
		Fields:           Fields(state.Context),
		Examples:         examples,
		ExampleIndex:     state.ExampleIndex,
		Input:            state.Input,
		Transcript:       NewTranscript(state),
		DiscoveryEnabled: discovery,
	}
}
