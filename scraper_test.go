package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scholarscout/scraper/llm"
	"github.com/scholarscout/scraper/models"
	"github.com/scholarscout/scraper/page"
)

const applicationPage = `<!DOCTYPE html>
<html>
<head>
	<meta property="og:title" content="Future Leaders Scholarship" />
	<title>Foundation</title>
</head>
<body>
	<nav><a href="/">Home</a> <a href="/blog/">Blog</a></nav>
	<h1>Future Leaders Scholarship 2025</h1>
	<p>The Future Leaders Scholarship awards $5,000 to high school seniors who show leadership in their communities.</p>
	<p>Application deadline: March 15, 2025. Complete the application form and apply now to be considered.</p>
	<a href="https://portal.example.org/apply">Start your application</a>
	<a href="/blog/winners-2024">Last year's winners</a>
</body>
</html>`

const articlePage = `<!DOCTYPE html>
<html>
<head><title>10 Tips for Winning Scholarships</title></head>
<body>
	<article>
		<h1>10 Tips for Winning Scholarships</h1>
		<p>Published on January 3, 2025 by author Jane Doe. Landing a scholarship takes planning, persistence and a great essay.</p>
		<p>Share this post with your friends. Read more in our related articles below and subscribe to our newsletter.</p>
	</article>
</body>
</html>`

const shortPage = `<html><body><p>Loading...</p></body></html>`

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/scholarship":
			w.Write([]byte(applicationPage))
		case "/blog/tips":
			w.Write([]byte(articlePage))
		case "/short":
			w.Write([]byte(shortPage))
		case "/error":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// fakeAnalyzer returns a fixed verdict or error and counts calls
type fakeAnalyzer struct {
	result models.ClassificationResult
	err    error
	calls  atomic.Int32
	seen   []string
	mu     sync.Mutex
}

func (f *fakeAnalyzer) Classify(ctx context.Context, content string) (models.ClassificationResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, content)
	f.mu.Unlock()
	return f.result, f.err
}

type recordingObserver struct {
	mu    sync.Mutex
	paths []string
}

func (o *recordingObserver) ObserveClassification(_ models.Classification, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, path)
}

func TestNew(t *testing.T) {
	c := New(DefaultConfig(), nil)

	if c == nil {
		t.Fatal("Expected classifier to be non-nil")
	}
	if c.fetcher == nil {
		t.Error("Expected fetcher to be non-nil")
	}
	if cap(c.analyzerSemaphore) != 3 {
		t.Errorf("analyzer semaphore capacity = %d, want 3", cap(c.analyzerSemaphore))
	}
	if c.config.ContentBudget != 4000 || c.config.AnalyzerBudget != 3000 {
		t.Errorf("unexpected budgets: %d / %d", c.config.ContentBudget, c.config.AnalyzerBudget)
	}
}

func TestClassifyURLHeuristics(t *testing.T) {
	site := newTestSite(t)
	c := New(DefaultConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		path       string
		want       models.Classification
		wantSaving bool
	}{
		{"application page", "/scholarship", models.ClassApplication, true},
		{"article page", "/blog/tips", models.ClassArticle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.ClassifyURL(ctx, site.URL+tt.path)

			if result.Classification != tt.want {
				t.Errorf("Classification = %s, want %s (reason: %s)", result.Classification, tt.want, result.Reason)
			}
			if result.IsWorthSaving() != tt.wantSaving {
				t.Errorf("IsWorthSaving() = %v, want %v", result.IsWorthSaving(), tt.wantSaving)
			}
			if result.AIUsed {
				t.Error("AIUsed should be false without an analyzer")
			}
			if result.Confidence <= 0 || result.Confidence > 0.7 {
				t.Errorf("heuristic confidence %v out of range", result.Confidence)
			}
		})
	}
}

func TestClassifyURLFillsNameAndApplyURL(t *testing.T) {
	site := newTestSite(t)
	c := New(DefaultConfig(), nil)

	result := c.ClassifyURL(context.Background(), site.URL+"/scholarship")

	if result.ScholarshipName == nil || *result.ScholarshipName != "Future Leaders Scholarship" {
		t.Errorf("ScholarshipName = %v, want og:title", result.ScholarshipName)
	}
	if result.DirectApplyURL == nil || *result.DirectApplyURL != "https://portal.example.org/apply" {
		t.Errorf("DirectApplyURL = %v, want the portal link", result.DirectApplyURL)
	}
}

func TestClassifyURLFailsClosed(t *testing.T) {
	site := newTestSite(t)
	analyzer := &fakeAnalyzer{result: models.ClassificationResult{Classification: models.ClassApplication}}
	c := New(DefaultConfig(), analyzer)
	ctx := context.Background()

	for _, path := range []string{"/short", "/error", "/missing"} {
		t.Run(path, func(t *testing.T) {
			result := c.ClassifyURL(ctx, site.URL+path)

			if result.Classification != models.ClassUnknown {
				t.Errorf("Classification = %s, want UNKNOWN", result.Classification)
			}
			if result.IsWorthSaving() {
				t.Error("UNKNOWN must not be worth saving")
			}
			if result.Confidence != 0 {
				t.Errorf("Confidence = %v, want 0", result.Confidence)
			}
			if result.Reason != ReasonFetchFailed {
				t.Errorf("Reason = %q", result.Reason)
			}
		})
	}

	if analyzer.calls.Load() != 0 {
		t.Errorf("analyzer called %d times for unusable pages", analyzer.calls.Load())
	}
}

func TestClassifyURLUnreachableHost(t *testing.T) {
	c := New(Config{FetchTimeout: 500 * time.Millisecond}, nil)

	result := c.ClassifyURL(context.Background(), "http://127.0.0.1:1/nothing")
	if result.Classification != models.ClassUnknown {
		t.Errorf("Classification = %s, want UNKNOWN", result.Classification)
	}
}

func TestClassifyURLUsesAnalyzer(t *testing.T) {
	site := newTestSite(t)
	name := "Future Leaders"
	analyzer := &fakeAnalyzer{result: models.ClassificationResult{
		Classification:  models.ClassInfo,
		Confidence:      0.9,
		ScholarshipName: &name,
		Reason:          "describes eligibility",
	}}
	observer := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.AnalyzerBudget = 50
	cfg.Observer = observer
	c := New(cfg, analyzer)

	result := c.ClassifyURL(context.Background(), site.URL+"/scholarship")

	if result.Classification != models.ClassInfo || !result.AIUsed {
		t.Errorf("got %s (ai=%v), want INFO from analyzer", result.Classification, result.AIUsed)
	}
	if len(analyzer.seen) != 1 || len([]rune(analyzer.seen[0])) != 50 {
		t.Errorf("analyzer content not truncated to budget: %q", analyzer.seen)
	}
	if len(observer.paths) != 1 || observer.paths[0] != PathAI {
		t.Errorf("observer paths = %v", observer.paths)
	}
}

func TestClassifyURLFallsBackOnAnalyzerError(t *testing.T) {
	site := newTestSite(t)
	analyzer := &fakeAnalyzer{err: llm.ErrMalformed}
	c := New(DefaultConfig(), analyzer)

	result := c.ClassifyURL(context.Background(), site.URL+"/scholarship")

	if result.AIUsed {
		t.Error("expected heuristic fallback after analyzer error")
	}
	if result.Classification != models.ClassApplication {
		t.Errorf("Classification = %s, want APPLICATION", result.Classification)
	}
	if analyzer.calls.Load() != 1 {
		t.Errorf("analyzer calls = %d, want 1", analyzer.calls.Load())
	}
}

func TestClassifyURLWithMockAIServer(t *testing.T) {
	site := newTestSite(t)

	aiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply := "```json\n{\"classification\": \"ARTICLE\", \"confidence\": 0.85, \"scholarship_name\": null, \"direct_apply_url\": null, \"reason\": \"General advice post.\"}\n```"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	defer aiServer.Close()

	client := llm.NewClient(llm.Config{APIKey: "test", BaseURL: aiServer.URL})
	c := New(DefaultConfig(), client)

	result := c.ClassifyURL(context.Background(), site.URL+"/scholarship")
	if result.Classification != models.ClassArticle || !result.AIUsed {
		t.Errorf("got %s (ai=%v), want ARTICLE from AI", result.Classification, result.AIUsed)
	}
	if result.IsWorthSaving() {
		t.Error("ARTICLE must not be worth saving")
	}
}

func TestClassifyURLCancelledWhileWaitingForSlot(t *testing.T) {
	site := newTestSite(t)
	analyzer := &fakeAnalyzer{result: models.ClassificationResult{Classification: models.ClassInfo}}
	cfg := DefaultConfig()
	cfg.MaxConcurrentAnalyses = 1
	c := New(cfg, analyzer)

	// occupy the only slot
	if err := c.acquireAnalyzerSlot(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.releaseAnalyzerSlot()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := c.fetcher.Fetch(ctx, site.URL+"/scholarship")
	if err != nil {
		t.Fatal(err)
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	_, ok := c.analyze(waitCtx, site.URL, p.CleanText())
	if ok {
		t.Error("analyze should give up when the context ends before a slot frees")
	}
	if analyzer.calls.Load() != 0 {
		t.Error("analyzer must not be called without a slot")
	}
}

func TestClassifyContent(t *testing.T) {
	c := New(DefaultConfig(), nil)
	ctx := context.Background()

	short := c.ClassifyContent(ctx, "https://example.org/apply", "apply now")
	if short.Classification != models.ClassUnknown {
		t.Errorf("short content = %s, want UNKNOWN", short.Classification)
	}

	text := strings.Repeat("Learn about the Smith scholarship for nursing students. ", 3)
	info := c.ClassifyContent(ctx, "https://example.org/programs", text)
	if info.Classification != models.ClassInfo {
		t.Errorf("Classification = %s, want INFO", info.Classification)
	}
}

func TestShouldSave(t *testing.T) {
	site := newTestSite(t)
	c := New(DefaultConfig(), nil)
	ctx := context.Background()

	ok, reason, better := c.ShouldSave(ctx, site.URL+"/scholarship")
	if !ok {
		t.Errorf("ShouldSave() = false (%s), want true", reason)
	}
	if better != "https://portal.example.org/apply" {
		t.Errorf("better URL = %q", better)
	}

	ok, reason, better = c.ShouldSave(ctx, site.URL+"/short")
	if ok || reason != ReasonFetchFailed || better != "" {
		t.Errorf("ShouldSave(short) = %v, %q, %q", ok, reason, better)
	}
}

type errFetcher struct{ err error }

func (f errFetcher) Fetch(ctx context.Context, rawURL string) (*page.Page, error) {
	return nil, f.err
}

func TestWithFetcher(t *testing.T) {
	c := New(DefaultConfig(), nil).WithFetcher(errFetcher{err: errors.New("offline")})
	result := c.ClassifyURL(context.Background(), "https://example.org/apply")
	if result.Classification != models.ClassUnknown {
		t.Errorf("Classification = %s, want UNKNOWN", result.Classification)
	}
}
