package page

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const scholarshipPage = `<!DOCTYPE html>
<html>
<head>
	<title>Future Leaders Scholarship</title>
	<style>.x { color: red }</style>
	<script>var tracking = "apply now";</script>
</head>
<body>
	<header>Site Header</header>
	<nav><a href="/home">Home</a></nav>
	<main>
		<h1>Future Leaders Scholarship</h1>
		<p>Award: $5,000</p>
		<p>Deadline:</p>
		<p>March 15, 2025</p>
		<a href="/apply">Apply   now</a>
		<a href="https://example.org/apply">Duplicate?</a>
		<a href="#top">Top</a>
		<a href="javascript:void(0)">Menu</a>
	</main>
	<aside>Sidebar ad</aside>
	<footer>Copyright</footer>
	<noscript>Enable JS</noscript>
</body>
</html>`

func mustParse(t *testing.T, base, body string) *Page {
	t.Helper()
	u, err := url.Parse(base)
	if err != nil {
		t.Fatalf("bad base URL: %v", err)
	}
	p, err := Parse(u, []byte(body))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return p
}

func TestCleanTextRemovesBoilerplate(t *testing.T) {
	p := mustParse(t, "https://example.org/", scholarshipPage)
	text := p.CleanText()

	for _, unwanted := range []string{"Site Header", "Home", "Sidebar ad", "Copyright", "Enable JS", "tracking", "color"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("CleanText() contains %q: %s", unwanted, text)
		}
	}
	for _, wanted := range []string{"Future Leaders Scholarship", "Award: $5,000", "Apply now"} {
		if !strings.Contains(text, wanted) {
			t.Errorf("CleanText() missing %q: %s", wanted, text)
		}
	}
	if strings.Contains(text, "  ") {
		t.Errorf("CleanText() did not collapse whitespace: %q", text)
	}
}

func TestCleanTextLeavesDocumentIntact(t *testing.T) {
	p := mustParse(t, "https://example.org/", scholarshipPage)
	_ = p.CleanText()

	if !strings.Contains(p.BodyText(), "Copyright") {
		t.Error("CleanText() mutated the parsed document")
	}
}

func TestBodyTextPreservesLines(t *testing.T) {
	p := mustParse(t, "https://example.org/", scholarshipPage)
	lines := strings.Split(p.BodyText(), "\n")

	deadline := -1
	for i, line := range lines {
		if line == "Deadline:" {
			deadline = i
		}
	}
	if deadline < 0 || deadline+1 >= len(lines) {
		t.Fatalf("Deadline line not found in %q", lines)
	}
	if lines[deadline+1] != "March 15, 2025" {
		t.Errorf("line after Deadline = %q, want the date", lines[deadline+1])
	}
	for _, line := range lines {
		if strings.Contains(line, "tracking") {
			t.Errorf("BodyText() includes script content: %q", line)
		}
	}
}

func TestLinks(t *testing.T) {
	p := mustParse(t, "https://example.org/scholarships/", scholarshipPage)
	links := p.Links()

	want := []Link{
		{URL: "https://example.org/home", Text: "Home"},
		{URL: "https://example.org/apply", Text: "Apply now"},
	}
	if len(links) != len(want) {
		t.Fatalf("Links() returned %d links, want %d: %+v", len(links), len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("Links()[%d] = %+v, want %+v", i, links[i], want[i])
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFetch(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(scholarshipPage))
		case "/moved":
			http.Redirect(w, r, "/ok", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewFetcher(DefaultConfig())
	ctx := context.Background()

	p, err := f.Fetch(ctx, server.URL+"/moved")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if p.Title() != "Future Leaders Scholarship" {
		t.Errorf("Title() = %q", p.Title())
	}
	if p.URL.Path != "/ok" {
		t.Errorf("URL not updated after redirect: %s", p.URL)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}

	_, err = f.Fetch(ctx, server.URL+"/missing")
	if !errors.Is(err, ErrStatus) {
		t.Errorf("Fetch(404) error = %v, want ErrStatus", err)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	f := NewFetcher(DefaultConfig())
	for _, raw := range []string{"ftp://example.com", "not a url", "https://"} {
		if _, err := f.Fetch(context.Background(), raw); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Fetch(%q) error = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(scholarshipPage))
	}))
	defer server.Close()

	f := NewFetcher(Config{Timeout: 20 * time.Millisecond})
	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Error("expected timeout error")
	}
}

// TestFetcherUsesOtelTransport verifies outbound page fetches propagate trace context
func TestFetcherUsesOtelTransport(t *testing.T) {
	f := NewFetcher(DefaultConfig())

	if _, ok := f.Client().GetClient().Transport.(*otelhttp.Transport); !ok {
		t.Error("Fetcher HTTP client does not use otelhttp.Transport for trace propagation")
	}
}
