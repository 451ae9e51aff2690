// Package responders resolves an alert into nearby help contacts through the
// language-model collaborator. An empty result is a valid "none found".
package responders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"connectaid/internal/alert"
)

type Responder struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
	Type string `json:"type"` // "place" or "web"
}

type Finder struct {
	api   openai.Client
	model openai.ChatModel
}

func NewFinder(api openai.Client, model string) *Finder {
	m := openai.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT5Nano
	}
	return &Finder{api: api, model: m}
}

const finderPrompt = `
You locate emergency responders.
Input is JSON: {"category", "details", "lat", "lng"}; lat/lng may be null,
meaning the location is unknown; then prefer national hotlines and web
resources.

Output ONLY a JSON array. No markdown. Each element:
{"name": "<contact name>", "uri": "<tel:/https: URI>", "type": "place"|"web"}
Return [] when nothing concrete can be named. Direct, actionable contacts only.
`

// FindNearby returns responder contacts for the alert. Failures surface as
// errors; the caller owns the user-facing fallback.
func (f *Finder) FindNearby(ctx context.Context, cat alert.Category, details string, loc *alert.GeoPoint) ([]Responder, error) {
	req := map[string]any{
		"category": cat.Name,
		"details":  details,
		"lat":      nil,
		"lng":      nil,
	}
	if loc != nil {
		req["lat"] = loc.Lat
		req["lng"] = loc.Lng
	}
	payload, _ := json.Marshal(req)

	resp, err := f.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(finderPrompt),
			openai.UserMessage(string(payload)),
		},
		Model: f.model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = stripFences(raw)

	var out []Responder
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("unmarshal responders: %w (raw: %s)", err, raw)
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
