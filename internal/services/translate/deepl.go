package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"glossa/internal/services"
)

const deepLDefaultBaseURL = "https://api-free.deepl.com"

// deepLStatusQuotaExceeded is permanent until the plan resets; retrying
// would only burn attempts.
const deepLStatusQuotaExceeded = 456

// DeepL translates batches through the DeepL v2 API.
type DeepL struct {
	apiKey     string
	formality  string
	baseURL    string
	httpClient *http.Client
}

// NewDeepL constructs the DeepL provider. formality may be empty or one of
// the values the API accepts (default, more, less, prefer_more, prefer_less).
func NewDeepL(apiKey, formality string, opts ...Option) *DeepL {
	options := buildClientOptions(deepLDefaultBaseURL, opts)
	return &DeepL{
		apiKey:     strings.TrimSpace(apiKey),
		formality:  strings.TrimSpace(formality),
		baseURL:    options.baseURL,
		httpClient: options.httpClient,
	}
}

func (c *DeepL) Name() string { return "deepl" }

// TranslateBatch repeats the text field once per line; DeepL returns the
// translations in the same order.
func (c *DeepL) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "translating", "deepl request", "api key required", nil)
	}

	form := url.Values{}
	for _, text := range texts {
		form.Add("text", text)
	}
	form.Set("target_lang", deepLLangCode(targetLang))
	if source := strings.TrimSpace(sourceLang); source != "" && !strings.EqualFold(source, "auto") {
		form.Set("source_lang", deepLLangCode(source))
	}
	if c.formality != "" {
		form.Set("formality", c.formality)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, services.Wrap(services.ErrTranslation, "translating", "deepl request", "build request", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "translating", "deepl request", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "translating", "deepl request", "read body", err)
	}
	if resp.StatusCode == deepLStatusQuotaExceeded {
		return nil, services.Wrap(services.ErrTranslation, "translating", "deepl request", "quota exceeded", nil)
	}
	if retryableStatus(resp.StatusCode) {
		return nil, services.Wrap(services.ErrTransient, "translating", "deepl request", fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTranslation, "translating", "deepl request", fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var payload struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrTranslation, "translating", "deepl request", "decode response", err)
	}
	translations := make([]string, 0, len(payload.Translations))
	for _, t := range payload.Translations {
		translations = append(translations, t.Text)
	}
	return translations, nil
}

// deepLLangCode converts ISO 639-1 codes to the form DeepL expects.
// Portuguese needs a regional variant.
func deepLLangCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "pt" {
		return "PT-BR"
	}
	return strings.ToUpper(code)
}
