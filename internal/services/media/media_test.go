package media

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/careloop/visit-media-service/internal/config"
	"github.com/careloop/visit-media-service/internal/types"
)

func TestGenerateObjectKeyFormat(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 45, 30, 0, time.UTC)

	key, err := GenerateObjectKey(types.KindAudio, "visit-42", "consult.wav", now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	pattern := `^audio-recordings/visit-42/visit_audio_20250601_094530_[0-9a-f]{8}\.wav$`
	if !regexp.MustCompile(pattern).MatchString(key) {
		t.Fatalf("Key %q does not match %s", key, pattern)
	}
}

func TestGenerateObjectKeyPhotoFolder(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 45, 30, 0, time.UTC)

	key, err := GenerateObjectKey(types.KindPhoto, "visit-42", "wound.jpeg", now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.HasPrefix(key, "photos/visit-42/visit_photo_") {
		t.Fatalf("Expected photo prefix, got %q", key)
	}
	if !strings.HasSuffix(key, ".jpeg") {
		t.Fatalf("Expected original extension preserved, got %q", key)
	}
}

// Two keys generated within the same second for the same visit and kind
// must still differ.
func TestGenerateObjectKeyUniqueWithinSecond(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 45, 30, 0, time.UTC)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := GenerateObjectKey(types.KindAudio, "v1", "a.wav", now)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if seen[key] {
			t.Fatalf("Duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}

func TestGenerateObjectKeyRejectsMissingExtension(t *testing.T) {
	for _, name := range []string{"recording", "recording.", ""} {
		_, err := GenerateObjectKey(types.KindAudio, "v1", name, time.Now())
		if err == nil {
			t.Fatalf("Expected error for file name %q", name)
		}
	}
}

func TestValidateContentType(t *testing.T) {
	svc := &Service{config: &config.Media{
		AllowedAudioTypes: []string{"audio/wav", "audio/mpeg"},
		AllowedPhotoTypes: []string{"image/jpeg", "image/png"},
	}}

	cases := []struct {
		contentType string
		wantKind    types.Kind
		wantAllowed bool
	}{
		{"audio/wav", types.KindAudio, true},
		{"audio/flac", types.KindAudio, false},
		{"image/png", types.KindPhoto, true},
		{"image/tiff", types.KindPhoto, false},
		{"video/mp4", "", false},
		{"application/pdf", "", false},
	}

	for _, c := range cases {
		kind, allowed := svc.ValidateContentType(c.contentType)
		if kind != c.wantKind || allowed != c.wantAllowed {
			t.Fatalf("ValidateContentType(%q) = (%q, %v), want (%q, %v)",
				c.contentType, kind, allowed, c.wantKind, c.wantAllowed)
		}
	}
}
