package models

import (
	"encoding/json"
	"testing"
)

// TestClassificationResultJSONDerivesWorthSaving verifies is_worth_saving always follows the classification
func TestClassificationResultJSONDerivesWorthSaving(t *testing.T) {
	tests := []struct {
		class Classification
		want  bool
	}{
		{ClassApplication, true},
		{ClassInfo, true},
		{ClassArticle, false},
		{ClassOther, false},
		{ClassUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			result := ClassificationResult{Classification: tt.class, Confidence: 0.5, Reason: "test"}

			jsonBytes, err := json.Marshal(result)
			if err != nil {
				t.Fatalf("Failed to marshal result: %v", err)
			}

			var unmarshaled map[string]interface{}
			if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
				t.Fatalf("Failed to unmarshal JSON: %v", err)
			}

			got, ok := unmarshaled["is_worth_saving"].(bool)
			if !ok {
				t.Fatalf("is_worth_saving missing from JSON: %s", jsonBytes)
			}
			if got != tt.want {
				t.Errorf("is_worth_saving = %v, want %v", got, tt.want)
			}
			if unmarshaled["classification"] != string(tt.class) {
				t.Errorf("classification = %v, want %s", unmarshaled["classification"], tt.class)
			}
		})
	}
}

func TestClassificationResultJSONRoundTripIgnoresWorthSaving(t *testing.T) {
	// A client cannot force is_worth_saving on an ARTICLE
	input := `{"classification":"ARTICLE","confidence":0.9,"reason":"blog","is_worth_saving":true}`

	var result ClassificationResult
	if err := json.Unmarshal([]byte(input), &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if result.IsWorthSaving() {
		t.Error("ARTICLE must never be worth saving")
	}
}

func TestParsePlatform(t *testing.T) {
	tests := map[string]Platform{
		"":              PlatformGeneral,
		"Instagram":     PlatformInstagram,
		" rss ":         PlatformRSS,
		"social-media":  PlatformSocialMedia,
		"instagram-tor": PlatformExternal,
		"myspace":       PlatformExternal,
	}
	for in, want := range tests {
		if got := ParsePlatform(in); got != want {
			t.Errorf("ParsePlatform(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterVerdictString(t *testing.T) {
	v := FilterVerdict{Valid: false, Rule: RuleArticleDomain, Reason: string(RuleArticleDomain), Match: "medium.com"}
	if got := v.String(); got != "blocked: article domain (medium.com)" {
		t.Errorf("String() = %q", got)
	}

	v = FilterVerdict{Valid: true, Rule: RuleNeutral, Reason: string(RuleNeutral)}
	if got := v.String(); got != "allowed: neutral: no pattern matched" {
		t.Errorf("String() = %q", got)
	}
}
