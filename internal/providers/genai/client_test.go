package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wardrobe/internal/providers/edit"
)

func TestEditImageReturnsInlineImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash-image:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "secret" {
			t.Errorf("key = %q", got)
		}
		var req geminiGenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[0].Text != "make it clean" || parts[1].InlineData == nil {
			t.Errorf("unexpected parts: %+v", parts)
		}
		_ = json.NewEncoder(w).Encode(geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{
				{Text: "here you go"},
				{InlineData: &geminiInlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString([]byte("png-out"))}},
			}}}},
		})
	}))
	defer ts.Close()

	client := NewClient(Options{APIKey: "secret", BaseURL: ts.URL})
	got, err := client.EditImage(context.Background(), edit.Request{
		Image:  strings.NewReader("\x89PNG\r\n\x1a\nrest"),
		Prompt: "make it clean",
	})
	if err != nil {
		t.Fatalf("EditImage error: %v", err)
	}
	if string(got) != "png-out" {
		t.Fatalf("EditImage = %q", got)
	}
}

func TestEditImageTextOnlyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{Text: "no"}}}}},
		})
	}))
	defer ts.Close()

	client := NewClient(Options{APIKey: "secret", BaseURL: ts.URL})
	if _, err := client.EditImage(context.Background(), edit.Request{Image: strings.NewReader("x"), Prompt: "p"}); err == nil {
		t.Fatalf("expected error for text-only reply")
	}
}

func TestEditImageStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	}))
	defer ts.Close()

	client := NewClient(Options{APIKey: "secret", BaseURL: ts.URL})
	_, err := client.EditImage(context.Background(), edit.Request{Image: strings.NewReader("x"), Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("error = %v", err)
	}
}

func TestEditImageRequiresKey(t *testing.T) {
	client := NewClient(Options{})
	_, err := client.EditImage(context.Background(), edit.Request{Image: strings.NewReader("x")})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}
}
