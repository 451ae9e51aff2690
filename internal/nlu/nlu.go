// Package nlu is the language-understanding collaborator: text
// simplification, detail validation for the typed flow, and one-utterance
// classification for the voice flow. All three go through chat completions
// with strict JSON-only prompts.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"

	"connectaid/internal/alert"
)

// Step is the dialogue position the classifier is told about.
type Step string

const (
	StepInitial Step = "initial"
	StepReview  Step = "review"
)

type Validation struct {
	IsValid  bool   `json:"is_valid"`
	Feedback string `json:"feedback"`
}

// TurnResult is the structured decision for one voice utterance.
type TurnResult struct {
	DetectedLang        string `json:"detected_lang"`
	EnglishDetails      string `json:"english_details"`
	Category            string `json:"category"`
	IsValid             bool   `json:"is_valid"`
	IsFinalConfirmation bool   `json:"is_final_confirmation"`
	ResponseText        string `json:"response_text"`
}

// FallbackTurnResult is adopted whenever classification fails: a safe
// non-decision that keeps the dialogue where it is.
func FallbackTurnResult() TurnResult {
	return TurnResult{
		DetectedLang: "en-US",
		ResponseText: "I couldn't understand. Please repeat clearly.",
	}
}

type Client struct {
	api   openai.Client
	model openai.ChatModel
}

func NewClient(api openai.Client, model string) *Client {
	m := openai.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT5Nano
	}
	return &Client{api: api, model: m}
}

const simplifyPrompt = `
You rewrite emergency descriptions for first responders.
Keep it factual, short, and urgent. Preserve every concrete fact.
Output ONLY the rewritten text. No preamble, no quotes, no markdown.
`

// Simplify rewrites text for clarity. It never fails: on any error the
// original text comes back with a marker so the caller can tell.
func (c *Client) Simplify(ctx context.Context, text string) string {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(simplifyPrompt),
			openai.UserMessage(text),
		},
		Model: c.model,
	})
	if err != nil || len(resp.Choices) == 0 {
		log.Warn("simplify failed, keeping original", "err", err)
		return "(unsimplified) " + text
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "(unsimplified) " + text
	}
	return out
}

const validatePrompt = `
You validate emergency reports before dispatch.
Input is JSON: {"category": "<name>", "details": "<user text>"}.
Judge whether the details are specific enough for responders of that
category to act on: what is happening and to whom.

Output ONLY JSON. No markdown.
{
  "is_valid": <bool>,
  "feedback": "<one short sentence telling the user what to add; empty when valid>"
}
`

// ValidateDetails asks whether details are actionable for the category. The
// caller treats an error the same as a failed validation.
func (c *Client) ValidateDetails(ctx context.Context, details, categoryName string) (Validation, error) {
	payload, _ := json.Marshal(map[string]string{
		"category": categoryName,
		"details":  details,
	})

	raw, err := c.complete(ctx, validatePrompt, string(payload))
	if err != nil {
		return Validation{}, err
	}

	var out Validation
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return Validation{}, fmt.Errorf("unmarshal validation: %w (raw: %s)", err, raw)
	}
	return out, nil
}

const classifyPrompt = `
You are the emergency voice assistant's turn classifier.
Convert ONE user utterance into a minimal structured decision.

GENERAL RULES:
1. Do NOT converse beyond response_text.
2. Output ONLY JSON. No markdown.
3. Never invent facts the user did not say.

INPUT (JSON): {"transcript", "step", "pending_category"}

OUTPUT FORMAT:
{
  "detected_lang": "<IETF tag of the utterance's language>",
  "english_details": "<the emergency restated in English, empty if none>",
  "category": "<one of: %s, or empty if none applies>",
  "is_valid": <bool: utterance describes a real emergency with a category>,
  "is_final_confirmation": <bool: at step "review", the user clearly confirmed sending>,
  "response_text": "<what to say back, in the utterance's language>"
}

STEP RULES:
- step "initial": classify the emergency. When valid, response_text must
  restate category and details and ask the user to confirm sending the alert.
- step "review": decide only whether the user confirmed. Anything ambiguous
  or negative => is_final_confirmation false and response_text must say the
  report was discarded and ask them to start over.
`

// ClassifyTurn classifies one utterance given the current dialogue position.
func (c *Client) ClassifyTurn(ctx context.Context, transcript string, step Step, pendingCategory string) (TurnResult, error) {
	names := make([]string, 0, 5)
	for _, cat := range alert.Categories() {
		names = append(names, cat.Name)
	}

	payload, _ := json.Marshal(map[string]string{
		"transcript":       transcript,
		"step":             string(step),
		"pending_category": pendingCategory,
	})

	raw, err := c.complete(ctx, fmt.Sprintf(classifyPrompt, strings.Join(names, ", ")), string(payload))
	if err != nil {
		return TurnResult{}, err
	}
	return decodeTurnResult(raw)
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: c.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}
	return content, nil
}

func decodeTurnResult(raw string) (TurnResult, error) {
	var out TurnResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return TurnResult{}, fmt.Errorf("unmarshal turn result: %w (raw: %s)", err, raw)
	}
	if out.DetectedLang == "" {
		out.DetectedLang = "en-US"
	}
	return out, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
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
