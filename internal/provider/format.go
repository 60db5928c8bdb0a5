package provider

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/core"
)

type sampling struct {
	maxTokens   int
	temperature float64
}

func buildPayload(a agent.Agent, messages []core.Message, s sampling) map[string]any {
	if a.Format == config.FormatGemini {
		return buildGeminiPayload(messages, s)
	}
	return buildChatPayload(a, messages, s)
}

func buildChatPayload(a agent.Agent, messages []core.Message, s sampling) map[string]any {
	msgJSON := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		msgJSON = append(msgJSON, map[string]any{"role": string(message.Role), "content": message.Content})
	}

	return map[string]any{
		"model":       a.Model,
		"messages":    msgJSON,
		"max_tokens":  s.maxTokens,
		"temperature": s.temperature,
		"stream":      false,
	}
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// buildGeminiPayload folds system messages into systemInstruction and maps the
// assistant role to "model".
func buildGeminiPayload(messages []core.Message, s sampling) map[string]any {
	var system []string
	contents := make([]geminiContent, 0, len(messages))

	for _, message := range messages {
		switch message.Role {
		case core.RoleSystem:
			system = append(system, message.Content)
		case core.RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: message.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: message.Content}}})
		}
	}

	payload := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"maxOutputTokens": s.maxTokens,
			"temperature":     s.temperature,
		},
	}

	if len(system) > 0 {
		payload["systemInstruction"] = geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}

	return payload
}

func extractText(format string, body []byte) (string, error) {
	if format == config.FormatGemini {
		return extractGeminiText(body)
	}
	return extractChatText(body)
}

func extractChatText(body []byte) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", errors.New("no choices in response")
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", errors.New("malformed choice in response")
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", errors.New("malformed message in response")
	}

	content, ok := message["content"].(string)
	if !ok {
		return "", errors.New("message has no text content")
	}

	return content, nil
}

func extractGeminiText(body []byte) (string, error) {
	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response.Candidates) == 0 {
		return "", errors.New("gemini empty response")
	}

	parts := response.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", errors.New("gemini candidate has no parts")
	}

	var text strings.Builder
	for _, part := range parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}
