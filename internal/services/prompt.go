package services

import (
	"strings"

	"github.com/google/generative-ai-go/genai"

	"redisquery-backend/internal/models"
)

// QueryMarker separates the context block from the user's question on the
// first turn of a conversation.
const QueryMarker = "QUERY: "

const SystemPrompt = `You are a Senior Redis Architect. Your goal is to generate precise Redis commands.

INPUT CONTEXT:
1. KEY PATTERNS: How keys are named in the DB.
2. SAMPLE DATA: An example of the record structure.
3. INDEX INFO: Search index definitions (RediSearch).
4. OTHER METADATA: Module info, TTLs, or logical relationships.

RULES:
- PRIORITIZE KEY PATTERNS: Use the patterns (e.g., product:{sku}) exactly as defined.
- SEARCH COMMANDS: Use FT.SEARCH if index info is provided.
- DEBUGGING: If the user provides an error, cross-reference these 4 inputs to find the mismatch.
- OUTPUT: Valid Redis commands for Redis Insight or redis-cli.

Return your response in JSON:
{
  "command": "The exact Redis command(s)",
  "explanation": "Brief reasoning based on the provided context"
}`

// BuildUserTurn returns the text sent to the model for a new user turn. The
// context block is only sent when the conversation is empty; later turns rely
// on the replayed history.
func BuildUserTurn(ctx models.SchemaContext, history []models.Message, query string) string {
	if len(history) > 0 {
		return query
	}

	var b strings.Builder

	b.WriteString("REDIS DATABASE CONTEXT:\n\n")

	b.WriteString("1. KEY PATTERNS:\n")
	b.WriteString(ctx.KeyPatterns)
	b.WriteString("\n\n")

	b.WriteString("2. SAMPLE DATA:\n")
	b.WriteString(ctx.SampleData)
	b.WriteString("\n\n")

	b.WriteString("3. INDEX INFO:\n")
	b.WriteString(ctx.IndexInfo)
	b.WriteString("\n\n")

	b.WriteString("4. OTHER METADATA:\n")
	b.WriteString(ctx.OtherMetadata)
	b.WriteString("\n\n")

	b.WriteString(QueryMarker)
	b.WriteString(query)

	return b.String()
}

// ResponseSchema requires exactly a command and an explanation, both strings.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"command": {
				Type:        genai.TypeString,
				Description: "The Redis command(s) generated.",
			},
			"explanation": {
				Type:        genai.TypeString,
				Description: "Brief explanation of the command or the fix.",
			},
		},
		Required: []string{"command", "explanation"},
	}
}

// toContents replays the conversation history in the shape the chat API
// expects.
func toContents(history []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.PromptText())},
		})
	}
	return contents
}
