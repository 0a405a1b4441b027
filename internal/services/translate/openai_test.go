package translate_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"glossa/internal/services"
	"glossa/internal/services/translate"
)

func chatReply(t *testing.T, content string) []byte {
	t.Helper()
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	return encoded
}

func TestOpenAITranslateBatchBuildsChatRequest(t *testing.T) {
	var captured struct {
		path        string
		auth        string
		contentType string
		body        []byte
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.contentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = body
		w.Write(chatReply(t, `["Bonjour.", "Au revoir."]`))
	}))
	defer server.Close()

	client := translate.NewOpenAI("sk-test", "", translate.WithBaseURL(server.URL))
	got, err := client.TranslateBatch(context.Background(), []string{"Hello.", "Goodbye."}, "en", "fr")
	if err != nil {
		t.Fatalf("TranslateBatch returned error: %v", err)
	}
	want := []string{"Bonjour.", "Au revoir."}
	if !equalStrings(got, want) {
		t.Fatalf("expected translations %v, got %v", want, got)
	}

	if captured.path != "/v1/chat/completions" {
		t.Fatalf("expected chat completions path, got %q", captured.path)
	}
	if captured.auth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", captured.auth)
	}
	if captured.contentType != "application/json" {
		t.Fatalf("expected JSON content type, got %q", captured.contentType)
	}

	var request struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(captured.body, &request); err != nil {
		t.Fatalf("decode captured request: %v", err)
	}
	if request.Model != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %q", request.Model)
	}
	if request.Temperature != 0.3 {
		t.Fatalf("expected temperature 0.3, got %v", request.Temperature)
	}
	if len(request.Messages) != 2 || request.Messages[0].Role != "system" || request.Messages[1].Role != "user" {
		t.Fatalf("expected system+user messages, got %+v", request.Messages)
	}
	system := request.Messages[0].Content
	if !strings.Contains(system, "English") || !strings.Contains(system, "French") {
		t.Fatalf("expected language names in system prompt, got %q", system)
	}
	user := request.Messages[1].Content
	if !strings.Contains(user, "[1] Hello.") || !strings.Contains(user, "[2] Goodbye.") {
		t.Fatalf("expected numbered lines in user prompt, got %q", user)
	}
	if !strings.Contains(user, "exactly 2 translations") {
		t.Fatalf("expected count reminder in user prompt, got %q", user)
	}
}

func TestOpenAITranslateBatchParsesTolerantly(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "direct array",
			content: `["Un", "Deux"]`,
			want:    []string{"Un", "Deux"},
		},
		{
			name:    "wrapped object",
			content: `{"translations": ["Un", "Deux"]}`,
			want:    []string{"Un", "Deux"},
		},
		{
			name:    "array inside prose",
			content: "Here are the translations:\n[\"Un\", \"Deux\"]\nLet me know if you need more.",
			want:    []string{"Un", "Deux"},
		},
		{
			name:    "ass line break escape",
			content: `["Une ligne\Net l'autre"]`,
			want:    []string{"Une ligne\net l'autre"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(chatReply(t, tc.content))
			}))
			defer server.Close()

			texts := make([]string, len(tc.want))
			for i := range texts {
				texts[i] = "Line."
			}
			client := translate.NewOpenAI("sk-test", "gpt-4o", translate.WithBaseURL(server.URL))
			got, err := client.TranslateBatch(context.Background(), texts, "en", "fr")
			if err != nil {
				t.Fatalf("TranslateBatch returned error: %v", err)
			}
			if !equalStrings(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestOpenAITranslateBatchClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "throttled", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
		{name: "bad request", status: http.StatusBadRequest, transient: false},
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client := translate.NewOpenAI("sk-test", "", translate.WithBaseURL(server.URL))
			_, err := client.TranslateBatch(context.Background(), []string{"Hello."}, "en", "fr")
			if err == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if translate.IsTransient(err) != tc.transient {
				t.Fatalf("expected transient=%v for status %d, got %v (%v)", tc.transient, tc.status, translate.IsTransient(err), err)
			}
			if !tc.transient && !errors.Is(err, services.ErrTranslation) {
				t.Fatalf("expected translation error, got %v", err)
			}
		})
	}
}

func TestOpenAITranslateBatchSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded, try later"}}`))
	}))
	defer server.Close()

	client := translate.NewOpenAI("sk-test", "", translate.WithBaseURL(server.URL))
	_, err := client.TranslateBatch(context.Background(), []string{"Hello."}, "en", "fr")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected api error message, got %v", err)
	}
	if !errors.Is(err, services.ErrTranslation) {
		t.Fatalf("expected translation error, got %v", err)
	}
}

func TestOpenAITranslateBatchRejectsUnparseableContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(t, "I cannot translate that."))
	}))
	defer server.Close()

	client := translate.NewOpenAI("sk-test", "", translate.WithBaseURL(server.URL))
	_, err := client.TranslateBatch(context.Background(), []string{"Hello."}, "en", "fr")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if translate.IsTransient(err) {
		t.Fatalf("expected permanent error, got transient: %v", err)
	}
}

func TestOpenAITranslateBatchRequiresAPIKey(t *testing.T) {
	client := translate.NewOpenAI("", "", translate.WithBaseURL("http://localhost:1"))
	_, err := client.TranslateBatch(context.Background(), []string{"Hello."}, "en", "fr")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOpenAITranslateBatchSkipsEmptyInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request for empty batch")
	}))
	defer server.Close()

	client := translate.NewOpenAI("sk-test", "", translate.WithBaseURL(server.URL))
	got, err := client.TranslateBatch(context.Background(), nil, "en", "fr")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no translations, got %v", got)
	}
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
