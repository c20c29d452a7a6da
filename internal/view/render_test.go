package view

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redisquery-backend/internal/models"
)

func render(t *testing.T, state models.ConversationState) string {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, r.Transcript(&buf, NewTranscript(state)))
	return buf.String()
}

func TestTranscript_UserAndModelMessages(t *testing.T) {
	state := models.ConversationState{
		Messages: []models.Message{
			models.NewUserMessage("get user <1>", "REDIS DATABASE CONTEXT: ..."),
			models.NewModelMessage(models.GenerationResult{Command: "GET user:1", Explanation: "Direct key lookup"}),
		},
	}

	out := render(t, state)
	assert.Contains(t, out, "get user &lt;1&gt;")
	assert.NotContains(t, out, "REDIS DATABASE CONTEXT")
	assert.Contains(t, out, "user:1")
	assert.Contains(t, out, "Direct key lookup")
	assert.NotContains(t, out, LoadingText)
	assert.NotContains(t, out, "error-banner")
}

func TestTranscript_PendingModelMessage(t *testing.T) {
	state := models.ConversationState{
		Messages: []models.Message{{Role: models.RoleModel, Content: ""}},
	}

	out := render(t, state)
	assert.Contains(t, out, LoadingText)
}

func TestTranscript_LoadingAndError(t *testing.T) {
	out := render(t, models.ConversationState{
		Messages: []models.Message{models.NewUserMessage("q", "q")},
		Loading:  true,
	})
	assert.Contains(t, out, LoadingText)

	out = render(t, models.ConversationState{Error: "Failed to generate response. Please check your context fields."})
	assert.Contains(t, out, "error-banner")
	assert.Contains(t, out, "Please check your context fields.")
}

func TestTranscript_EmptyExplanationOmitted(t *testing.T) {
	out := render(t, models.ConversationState{
		Messages: []models.Message{models.NewModelMessage(models.GenerationResult{Command: "PING"})},
	})
	assert.NotContains(t, out, `class="explanation"`)
}

func TestPage_RendersPanelAndToken(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	state := models.ConversationState{
		Context:      models.SchemaContext{KeyPatterns: "user:{id}", IndexInfo: "idx:users"},
		Input:        "get user 1",
		ExampleIndex: 1,
	}
	examples := []models.ExampleSummary{{Index: 0, Name: "First"}, {Index: 1, Name: "Second"}}

	var buf strings.Builder
	require.NoError(t, r.Page(&buf, NewPage("tok-123", state, examples, true)))
	out := buf.String()

	for _, label := range []string{"1. Key Patterns", "2. Sample Data", "3. Search Indexes", "4. System Context"} {
		assert.Contains(t, out, label)
	}
	assert.Contains(t, out, "SCAN 0 MATCH * COUNT 10")
	assert.Contains(t, out, "user:{id}")
	assert.Contains(t, out, `"tok-123"`)
	assert.Contains(t, out, `data-index="1" title="" class="active"`)
	assert.Contains(t, out, `id="discover"`)
	assert.Contains(t, out, "Clear Stream")
}

func TestPage_HidesDiscoveryWhenDisabled(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, r.Page(&buf, NewPage("t", models.ConversationState{}, nil, false)))
	assert.NotContains(t, buf.String(), `id="discover"`)
}

func TestHighlight_EscapesMarkup(t *testing.T) {
	out := string(Highlight(`SET k "<script>"`))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "SET")
}

func TestFields_Order(t *testing.T) {
	fields := Fields(models.SchemaContext{KeyPatterns: "a", SampleData: "b", IndexInfo: "c", OtherMetadata: "d"})
	require.Len(t, fields, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{fields[0].Value, fields[1].Value, fields[2].Value, fields[3].Value})
	assert.Equal(t, "key_patterns", fields[0].Key)
	assert.Equal(t, "other_metadata", fields[3].Key)
}
