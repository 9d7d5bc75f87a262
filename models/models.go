package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Platform identifies the source a candidate was scraped from
type Platform string

const (
	PlatformGeneral     Platform = "general"
	PlatformInstagram   Platform = "instagram"
	PlatformTikTok      Platform = "tiktok"
	PlatformReddit      Platform = "reddit"
	PlatformRSS         Platform = "rss"
	PlatformFacebook    Platform = "facebook"
	PlatformSocialMedia Platform = "social-media"
	PlatformExternal    Platform = "external"
)

// ParsePlatform maps a free-form platform string onto a known Platform.
// Empty input is general, anything unrecognised is external.
func ParsePlatform(s string) Platform {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PlatformGeneral
	case PlatformGeneral, PlatformInstagram, PlatformTikTok, PlatformReddit,
		PlatformRSS, PlatformFacebook, PlatformSocialMedia, PlatformExternal:
		return p
	}
	return PlatformExternal
}

// Candidate is an unvalidated scraped item awaiting an ingestion decision
type Candidate struct {
	Title       string     `json:"title"`
	SourceURL   string     `json:"source_url"`
	Description *string    `json:"description,omitempty"` // caption, snippet, OCR or transcript text
	Amount      *string    `json:"amount,omitempty"`
	Deadline    *string    `json:"deadline,omitempty"`
	Platform    Platform   `json:"platform"`
	DatePosted  *time.Time `json:"date_posted,omitempty"`
}

// DescriptionText returns the description or an empty string
func (c Candidate) DescriptionText() string {
	if c.Description == nil {
		return ""
	}
	return *c.Description
}

// Record is a persisted, accepted scholarship entry
type Record struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	SourceURL   string     `json:"source_url"`
	Description *string    `json:"description"`
	Amount      *string    `json:"amount"`
	Deadline    *string    `json:"deadline"`
	Platform    Platform   `json:"platform"`
	RawText     *string    `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Classification is the four-way page intent taxonomy plus UNKNOWN
type Classification string

const (
	ClassApplication Classification = "APPLICATION"
	ClassInfo        Classification = "INFO"
	ClassArticle     Classification = "ARTICLE"
	ClassOther       Classification = "OTHER"
	ClassUnknown     Classification = "UNKNOWN"
)

// Valid reports whether c is one of the known labels
func (c Classification) Valid() bool {
	switch c {
	case ClassApplication, ClassInfo, ClassArticle, ClassOther, ClassUnknown:
		return true
	}
	return false
}

// ClassificationResult is the Content Classifier's verdict for one URL
type ClassificationResult struct {
	Classification  Classification `json:"classification"`
	Confidence      float64        `json:"confidence"`
	ScholarshipName *string        `json:"scholarship_name"`
	DirectApplyURL  *string        `json:"direct_apply_url"`
	Reason          string         `json:"reason"`
	AIUsed          bool           `json:"ai_used"` // semantic analysis (true) or heuristic fallback (false)
}

// IsWorthSaving is true only for APPLICATION and INFO pages
func (r ClassificationResult) IsWorthSaving() bool {
	return r.Classification == ClassApplication || r.Classification == ClassInfo
}

// MarshalJSON adds the derived is_worth_saving flag
func (r ClassificationResult) MarshalJSON() ([]byte, error) {
	type plain ClassificationResult
	return json.Marshal(struct {
		plain
		IsWorthSaving bool `json:"is_worth_saving"`
	}{plain(r), r.IsWorthSaving()})
}

// UnknownResult is the fail-closed verdict used when a page cannot be analysed
func UnknownResult(reason string) ClassificationResult {
	return ClassificationResult{
		Classification: ClassUnknown,
		Confidence:     0,
		Reason:         reason,
	}
}

// FilterRule names the URL Gatekeeper rule that decided a verdict
type FilterRule string

const (
	RuleInvalid         FilterRule = "invalid"
	RuleTrustedDomain   FilterRule = "trusted domain"
	RuleEduDomain       FilterRule = "edu domain"
	RuleArticleDomain   FilterRule = "article domain"
	RuleArticlePath     FilterRule = "article path"
	RuleScholarshipPath FilterRule = "scholarship path"
	RuleNeutral         FilterRule = "neutral: no pattern matched"
)

// FilterVerdict is the URL Gatekeeper's allow/block decision
type FilterVerdict struct {
	Valid  bool       `json:"is_valid"`
	Rule   FilterRule `json:"rule"`
	Reason string     `json:"reason"`
	Match  string     `json:"match,omitempty"` // domain or pattern that fired
}

func (v FilterVerdict) String() string {
	prefix := "blocked"
	if v.Valid {
		prefix = "allowed"
	}
	if v.Match != "" {
		return prefix + ": " + v.Reason + " (" + v.Match + ")"
	}
	return prefix + ": " + v.Reason
}

// EnrichmentResult holds the fields recovered by re-fetching a record's page
type EnrichmentResult struct {
	Amount   *string    `json:"amount,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	FullText string     `json:"full_text"`
}

// IngestReason explains an ingestion outcome
type IngestReason string

const (
	ReasonSaved              IngestReason = "saved"
	ReasonDuplicate          IngestReason = "duplicate"
	ReasonLowRelevance       IngestReason = "low-relevance"
	ReasonClassifierRejected IngestReason = "classifier-rejected"
	ReasonInvalid            IngestReason = "invalid"
)

// IngestOutcome is the Ingestion Coordinator's decision for one candidate
type IngestOutcome struct {
	Accepted       bool                  `json:"saved"`
	RecordID       int64                 `json:"id,omitempty"`
	Reason         IngestReason          `json:"reason"`
	Score          int                   `json:"score"`
	Classification *ClassificationResult `json:"classification,omitempty"`
}

// RecordUpdate is a set of fill-only changes to an existing Record. Nil
// fields are left untouched.
type RecordUpdate struct {
	Amount      *string `json:"amount,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u RecordUpdate) IsEmpty() bool {
	return u.Amount == nil && u.Deadline == nil && u.Description == nil
}
