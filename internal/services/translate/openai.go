package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"glossa/internal/services"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com"
	openAIDefaultModel   = "gpt-4o-mini"
	openAITemperature    = 0.3
)

// OpenAI translates batches through the chat-completions endpoint.
type OpenAI struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI constructs the OpenAI provider. An empty model selects
// gpt-4o-mini.
func NewOpenAI(apiKey, model string, opts ...Option) *OpenAI {
	options := buildClientOptions(openAIDefaultBaseURL, opts)
	model = strings.TrimSpace(model)
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAI{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		baseURL:    options.baseURL,
		httpClient: options.httpClient,
	}
}

func (c *OpenAI) Name() string { return "openai" }

// TranslateBatch sends one chat request for the whole batch and parses the
// JSON array the model returns.
func (c *OpenAI) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "translating", "openai request", "api key required", nil)
	}

	request := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(sourceLang, targetLang)},
			{Role: "user", Content: buildUserPrompt(texts)},
		},
		Temperature: openAITemperature,
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", "encode request", err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/v1/chat/completions")
	if err != nil {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", "build url", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "translating", "openai request", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "translating", "openai request", "read body", err)
	}
	if retryableStatus(resp.StatusCode) {
		return nil, services.Wrap(services.ErrTransient, "translating", "openai request", fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", "decode response", err)
	}
	if completion.Error != nil {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", "api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}
	if len(completion.Choices) == 0 {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", "empty choices", nil)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", "empty content", nil)
	}
	translations, err := parseTranslations(content)
	if err != nil {
		return nil, services.Wrap(services.ErrTranslation, "translating", "openai request", "parse translations", err)
	}
	return translations, nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// parseTranslations decodes the model's reply tolerantly: a direct JSON
// array, an object wrapping one, or an array embedded in surrounding prose.
func parseTranslations(content string) ([]string, error) {
	// Models sometimes emit ASS-style \N line breaks, an invalid JSON escape.
	content = strings.ReplaceAll(content, `\N`, `\n`)

	var translations []string
	if err := json.Unmarshal([]byte(content), &translations); err == nil {
		return translations, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil {
		if raw, ok := wrapped["translations"]; ok {
			if err := json.Unmarshal(raw, &translations); err == nil {
				return translations, nil
			}
		}
		keys := make([]string, 0, len(wrapped))
		for key := range wrapped {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := json.Unmarshal(wrapped[key], &translations); err == nil {
				return translations, nil
			}
		}
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &translations); err == nil {
			return translations, nil
		}
	}
	return nil, fmt.Errorf("no JSON array of strings in %q", content)
}
