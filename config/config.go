// Package config loads the keyword and pattern lists that drive triage from
// a json5 rules file with an optional <name>.local.<ext> override.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	scraper "github.com/scholarscout/scraper"
	"github.com/scholarscout/scraper/extract"
	"github.com/scholarscout/scraper/relevance"
	"github.com/scholarscout/scraper/sources"
	"github.com/scholarscout/scraper/urlfilter"
)

// Rules holds every tunable list used by the triage components
type Rules struct {
	Relevance  relevance.Keywords     `json:"relevance"`
	Extraction extract.Config         `json:"extraction"`
	URLFilter  urlfilter.Rules        `json:"url_filter"`
	Heuristics scraper.HeuristicRules `json:"heuristics"`
	Feeds      []sources.Feed         `json:"feeds"`
}

// DefaultRules returns the built-in lists
func DefaultRules() Rules {
	return Rules{
		Relevance:  relevance.DefaultKeywords(),
		Extraction: extract.DefaultConfig(),
		URLFilter:  urlfilter.DefaultRules(),
		Heuristics: scraper.DefaultHeuristicRules(),
		Feeds:      sources.DefaultFeeds(),
	}
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalPath returns the override file path for name
func LocalPath(name string) string {
	prefix, ext := splitExt(filepath.Base(name))
	return filepath.Join(filepath.Dir(name), fmt.Sprintf("%s.local.%s", prefix, ext))
}

// LoadRules merges, in increasing priority, the defaults, <name>.<ext> and
// <name>.local.<ext>. Lists a file leaves out keep their defaults; a list
// given as [] clears them. An empty
// path returns the defaults; a path where neither file exists returns
// os.ErrNotExist. The pattern lists are compiled before returning.
func LoadRules(name string) (Rules, error) {
	out := DefaultRules()
	if name == "" {
		return out, nil
	}

	allNotFound := true
	for _, path := range []string{name, LocalPath(name)} {
		found, err := mergeFile(&out, path)
		if err != nil {
			return Rules{}, err
		}
		if found {
			slog.Info("triage rules loaded", "path", path)
			allNotFound = false
		}
	}

	if allNotFound {
		return Rules{}, os.ErrNotExist
	}

	if _, err := out.Gatekeeper(); err != nil {
		return Rules{}, err
	}
	return out, nil
}

func mergeFile(out *Rules, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}

	var override Rules
	if err := json5.Unmarshal(data, &override); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := mergo.Merge(out, override, mergo.WithOverride, mergo.WithTransformers(explicitLists{})); err != nil {
		return false, fmt.Errorf("failed to merge %s: %w", path, err)
	}
	return true, nil
}

// explicitLists makes any list present in a rules file replace the current
// one, including an empty list. Decoding leaves absent lists nil and
// present ones non-nil, which plain WithOverride cannot tell apart.
type explicitLists struct{}

func (explicitLists) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ.Kind() != reflect.Slice {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if !src.IsNil() && dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}

// Scorer builds the relevance scorer
func (r Rules) Scorer() *relevance.Scorer {
	return relevance.New(r.Relevance)
}

// Extractor builds the shared field extractor
func (r Rules) Extractor() *extract.Extractor {
	return extract.New(r.Extraction)
}

// Gatekeeper compiles the URL filter rules
func (r Rules) Gatekeeper() (*urlfilter.Gatekeeper, error) {
	g, err := urlfilter.New(r.URLFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid url_filter rules: %w", err)
	}
	return g, nil
}
