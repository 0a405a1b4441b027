package translate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"glossa/internal/services"
	"glossa/internal/services/translate"
)

const deepLReply = `{"translations": [{"text": "Bonjour."}, {"text": "Au revoir."}]}`

func TestDeepLTranslateBatchBuildsForm(t *testing.T) {
	var captured struct {
		path string
		auth string
		form url.Values
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		captured.form = r.PostForm
		w.Write([]byte(deepLReply))
	}))
	defer server.Close()

	client := translate.NewDeepL("dl-test", "more", translate.WithBaseURL(server.URL))
	got, err := client.TranslateBatch(context.Background(), []string{"Hello.", "Goodbye."}, "en", "fr")
	if err != nil {
		t.Fatalf("TranslateBatch returned error: %v", err)
	}
	if !equalStrings(got, []string{"Bonjour.", "Au revoir."}) {
		t.Fatalf("unexpected translations: %v", got)
	}

	if captured.path != "/v2/translate" {
		t.Fatalf("expected translate path, got %q", captured.path)
	}
	if captured.auth != "DeepL-Auth-Key dl-test" {
		t.Fatalf("expected auth key header, got %q", captured.auth)
	}
	if !equalStrings(captured.form["text"], []string{"Hello.", "Goodbye."}) {
		t.Fatalf("expected one text field per line, got %v", captured.form["text"])
	}
	if got := captured.form.Get("target_lang"); got != "FR" {
		t.Fatalf("expected target_lang FR, got %q", got)
	}
	if got := captured.form.Get("source_lang"); got != "EN" {
		t.Fatalf("expected source_lang EN, got %q", got)
	}
	if got := captured.form.Get("formality"); got != "more" {
		t.Fatalf("expected formality more, got %q", got)
	}
}

func TestDeepLTranslateBatchOmitsAutoSource(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{name: "empty", source: ""},
		{name: "auto", source: "auto"},
		{name: "auto uppercase", source: "AUTO"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var form url.Values
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("parse form: %v", err)
				}
				form = r.PostForm
				w.Write([]byte(`{"translations": [{"text": "Bonjour."}]}`))
			}))
			defer server.Close()

			client := translate.NewDeepL("dl-test", "", translate.WithBaseURL(server.URL))
			if _, err := client.TranslateBatch(context.Background(), []string{"Hello."}, tc.source, "fr"); err != nil {
				t.Fatalf("TranslateBatch returned error: %v", err)
			}
			if _, ok := form["source_lang"]; ok {
				t.Fatalf("expected no source_lang for %q, got %q", tc.source, form.Get("source_lang"))
			}
			if _, ok := form["formality"]; ok {
				t.Fatalf("expected no formality field, got %q", form.Get("formality"))
			}
		})
	}
}

func TestDeepLTranslateBatchMapsPortugueseVariant(t *testing.T) {
	var target string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		target = r.PostForm.Get("target_lang")
		w.Write([]byte(`{"translations": [{"text": "Olá."}]}`))
	}))
	defer server.Close()

	client := translate.NewDeepL("dl-test", "", translate.WithBaseURL(server.URL))
	if _, err := client.TranslateBatch(context.Background(), []string{"Hello."}, "en", "pt"); err != nil {
		t.Fatalf("TranslateBatch returned error: %v", err)
	}
	if target != "PT-BR" {
		t.Fatalf("expected PT-BR target, got %q", target)
	}
}

func TestDeepLTranslateBatchClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "throttled", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusServiceUnavailable, transient: true},
		{name: "quota exhausted", status: 456, transient: false},
		{name: "bad key", status: http.StatusForbidden, transient: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client := translate.NewDeepL("dl-test", "", translate.WithBaseURL(server.URL))
			_, err := client.TranslateBatch(context.Background(), []string{"Hello."}, "en", "fr")
			if err == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if translate.IsTransient(err) != tc.transient {
				t.Fatalf("expected transient=%v for status %d, got %v (%v)", tc.transient, tc.status, translate.IsTransient(err), err)
			}
		})
	}
}

func TestDeepLTranslateBatchRequiresAPIKey(t *testing.T) {
	client := translate.NewDeepL("", "", translate.WithBaseURL("http://localhost:1"))
	_, err := client.TranslateBatch(context.Background(), []string{"Hello."}, "en", "fr")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
