package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarscout/scraper/relevance"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadRulesEmptyPath(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestLoadRulesMissingFiles(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "rules.json5"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadRulesOverridesOnlyGivenLists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json5")
	writeFile(t, path, `{
		// json5 allows comments and trailing commas
		relevance: {
			positive: ["bourse", "beca",],
		},
		extraction: { min_amount: 250 },
	}`)

	rules, err := LoadRules(path)
	require.NoError(t, err)

	defaults := DefaultRules()
	assert.Equal(t, []string{"bourse", "beca"}, rules.Relevance.Positive)
	assert.Equal(t, defaults.Relevance.Negative, rules.Relevance.Negative)
	assert.Equal(t, defaults.Relevance.PositiveWeight, rules.Relevance.PositiveWeight)
	assert.Equal(t, 250.0, rules.Extraction.MinAmount)
	assert.Equal(t, defaults.Extraction.DeadlineKeywords, rules.Extraction.DeadlineKeywords)
	assert.Equal(t, defaults.URLFilter, rules.URLFilter)
	assert.Equal(t, defaults.Feeds, rules.Feeds)

	assert.Positive(t, rules.Scorer().Score("une bourse d'études"))
	assert.Zero(t, rules.Scorer().Score("scholarship"))
}

func TestLoadRulesEmptyListClearsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json5")
	writeFile(t, path, `{ relevance: { negative: [] }, feeds: [] }`)

	rules, err := LoadRules(path)
	require.NoError(t, err)

	defaults := DefaultRules()
	require.NotEmpty(t, defaults.Relevance.Negative)
	assert.Empty(t, rules.Relevance.Negative)
	assert.Empty(t, rules.Feeds)
	assert.Equal(t, defaults.Relevance.Positive, rules.Relevance.Positive)
	assert.Equal(t, defaults.Relevance.NegativeWeight, rules.Relevance.NegativeWeight)
	assert.Equal(t, defaults.URLFilter, rules.URLFilter)

	// negatives no longer subtract
	text := "scholarship " + defaults.Relevance.Negative[0]
	assert.Greater(t, rules.Scorer().Score(text), defaults.Scorer().Score(text))
}

func TestLoadRulesLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json5")
	writeFile(t, path, `{ relevance: { positive_weight: 5 }, url_filter: { trusted_domains: ["a.org"] } }`)
	writeFile(t, filepath.Join(dir, "rules.local.json5"), `{ url_filter: { trusted_domains: ["b.org"] } }`)

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 5, rules.Relevance.PositiveWeight)
	assert.Equal(t, []string{"b.org"}, rules.URLFilter.TrustedDomains)

	g, err := rules.Gatekeeper()
	require.NoError(t, err)
	assert.True(t, g.Filter("https://b.org/anything").Valid)
}

func TestLoadRulesOnlyLocalFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rules.local.json5"), `{ feeds: [{ name: "x", url: "https://x.org/feed", keywords: ["grant"] }] }`)

	rules, err := LoadRules(filepath.Join(dir, "rules.json5"))
	require.NoError(t, err)
	require.Len(t, rules.Feeds, 1)
	assert.Equal(t, "x", rules.Feeds[0].Name)
}

func TestLoadRulesInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json5")
	writeFile(t, bad, `{ relevance: `)
	_, err := LoadRules(bad)
	assert.Error(t, err)

	badPattern := filepath.Join(dir, "pattern.json5")
	writeFile(t, badPattern, `{ url_filter: { article_paths: ["(unclosed"] } }`)
	_, err = LoadRules(badPattern)
	assert.Error(t, err)
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, filepath.Join("conf", "rules.local.json5"), LocalPath(filepath.Join("conf", "rules.json5")))
}

func TestDefaultRulesMatchComponents(t *testing.T) {
	assert.Equal(t, relevance.DefaultKeywords(), DefaultRules().Relevance)
	assert.Equal(t, relevance.Score("scholarship grant"), DefaultRules().Scorer().Score("scholarship grant"))
}
