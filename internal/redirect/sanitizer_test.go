package redirect

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name          string
		rawURL        string
		expectedURL   string
		expectedID    string
		expectGenerID bool
	}{
		{
			name:        "onboarding_param_round_trip",
			rawURL:      "https://x.test/path?onboarding=abc123",
			expectedURL: "https://x.test/path",
			expectedID:  "abc123",
		},
		{
			name:        "onboarding_with_other_params",
			rawURL:      "https://x.test/app/verify/?lang=en&onboarding=abc-123&step=2",
			expectedURL: "https://x.test/app/verify",
			expectedID:  "abc-123",
		},
		{
			name:        "fragment_removed",
			rawURL:      "https://x.test/path?onboarding=abc123#top",
			expectedURL: "https://x.test/path",
			expectedID:  "abc123",
		},
		{
			name:          "no_query_string",
			rawURL:        "https://x.test/path/",
			expectedURL:   "https://x.test/path",
			expectGenerID: true,
		},
		{
			name:          "empty_onboarding_param",
			rawURL:        "http://localhost:3000/app/onboarding/identity-verification?onboarding",
			expectedURL:   "http://localhost:3000/app/onboarding/identity-verification",
			expectGenerID: true,
		},
		{
			name:          "unparsable_url",
			rawURL:        "http://[::1:bad/path?onboarding=abc",
			expectedURL:   "http://[::1:bad/path",
			expectGenerID: true,
		},
		{
			name:          "relative_path_is_opaque",
			rawURL:        "/app/done/?onboarding=abc",
			expectedURL:   "/app/done",
			expectGenerID: true,
		},
		{
			name:          "empty_input_uses_default",
			rawURL:        "",
			expectedURL:   "https://default.test/return",
			expectGenerID: true,
		},
		{
			name:          "whitespace_input_uses_default",
			rawURL:        "   ",
			expectedURL:   "https://default.test/return",
			expectGenerID: true,
		},
	}

	sanitizer := NewSanitizer("https://default.test/return/?onboarding")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanURL, correlationID := sanitizer.Sanitize(tt.rawURL)

			if cleanURL != tt.expectedURL {
				t.Errorf("expected clean url '%s', but got '%s'", tt.expectedURL, cleanURL)
			}
			if strings.Contains(cleanURL, "?") {
				t.Errorf("clean url must not contain a query string: '%s'", cleanURL)
			}

			if tt.expectGenerID {
				if !strings.HasPrefix(correlationID, "user_") || len(correlationID) <= len("user_") {
					t.Errorf("expected generated correlation id, but got '%s'", correlationID)
				}
				return
			}

			if correlationID != tt.expectedID {
				t.Errorf("expected correlation id '%s', but got '%s'", tt.expectedID, correlationID)
			}
		})
	}
}

func TestSanitizeWithoutDefault(t *testing.T) {
	sanitizer := NewSanitizer("")

	cleanURL, correlationID := sanitizer.Sanitize("")
	if cleanURL != "" {
		t.Errorf("expected empty clean url, but got '%s'", cleanURL)
	}
	if correlationID == "" {
		t.Error("expected generated correlation id, but got empty string")
	}
}

func TestSanitizeGeneratesFreshIdentifiers(t *testing.T) {
	sanitizer := NewSanitizer("")

	firstURL, firstID := sanitizer.Sanitize("https://x.test/path")
	secondURL, secondID := sanitizer.Sanitize(firstURL)

	if firstURL != "https://x.test/path" || secondURL != firstURL {
		t.Errorf("expected stable clean url, got '%s' and '%s'", firstURL, secondURL)
	}
	if firstID == secondID {
		t.Errorf("expected a new identifier per call, got '%s' twice", firstID)
	}
}

func TestSanitizeUsesInjectedGenerator(t *testing.T) {
	sanitizer := NewSanitizer("")
	sanitizer.newID = func() string { return "user_fixed" }

	_, correlationID := sanitizer.Sanitize("not a url at all")
	if correlationID != "user_fixed" {
		t.Errorf("expected 'user_fixed', but got '%s'", correlationID)
	}
}
