package httpapi

import (
	"strings"
	"testing"
)

func TestValidateTranslateMultiPayload_AcceptsValidBody(t *testing.T) {
	t.Parallel()

	payload, err := ValidateTranslateMultiPayload([]byte(`{
		"text": "good morning",
		"languages": ["de", "fr"],
		"play_audio": true,
		"provider": "openai"
	}`))
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	if payload.Text != "good morning" {
		t.Fatalf("unexpected text: %q", payload.Text)
	}
	if len(payload.Languages) != 2 || payload.Languages[1] != "fr" {
		t.Fatalf("unexpected languages: %#v", payload.Languages)
	}
	if !payload.PlayAudio {
		t.Fatalf("expected play_audio true")
	}
	if payload.Provider != "openai" {
		t.Fatalf("unexpected provider: %q", payload.Provider)
	}
}

func TestValidateTranslateMultiPayload_RejectsInvalidBodies(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty body":          ``,
		"not json":            `translate this`,
		"missing text":        `{"languages":["de"]}`,
		"missing languages":   `{"text":"hello"}`,
		"empty languages":     `{"text":"hello","languages":[]}`,
		"blank text":          `{"text":"   ","languages":["de"]}`,
		"blank language":      `{"text":"hello","languages":["  "]}`,
		"short language code": `{"text":"hello","languages":["d"]}`,
		"unknown field":       `{"text":"hello","languages":["de"],"priority":"high"}`,
		"trailing content":    `{"text":"hello","languages":["de"]} extra`,
		"oversized text":      `{"text":"` + strings.Repeat("a", 10001) + `","languages":["de"]}`,
	}

	for name, body := range cases {
		if _, err := ValidateTranslateMultiPayload([]byte(body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
