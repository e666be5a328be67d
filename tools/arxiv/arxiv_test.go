package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/viso-study/visocode/config"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Convergence Rates of
      Stochastic Gradient Descent</title>
    <summary>
      We study convergence rates of SGD
      under smoothness assumptions.
    </summary>
    <author><name>A. Author</name></author>
    <author><name>B. Writer</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00002v1</id>
    <title>A Second Paper</title>
    <summary>Another abstract.</summary>
    <author><name>C. Third</name></author>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(config.LiteratureConfig{Endpoint: srv.URL, MaxResults: 5, Timeout: 5 * time.Second})
	return c, srv
}

func TestSearchFormatsEntries(t *testing.T) {
	var gotQuery string
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		w.Write([]byte(sampleFeed))
	})

	out, err := c.Search(context.Background(), "sgd convergence rates", 0, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "all:sgd convergence rates" {
		t.Fatalf("search_query = %q", gotQuery)
	}
	if !strings.Contains(out, "Search strategy: sorted by relevance (general query)") {
		t.Fatalf("missing strategy line: %q", out)
	}
	if !strings.Contains(out, "1. Convergence Rates of Stochastic Gradient Descent") {
		t.Fatalf("title whitespace should be collapsed: %q", out)
	}
	if !strings.Contains(out, "Authors: A. Author, B. Writer") {
		t.Fatalf("authors missing: %q", out)
	}
	if !strings.Contains(out, "Link: http://arxiv.org/abs/2401.00001v1") {
		t.Fatalf("link missing: %q", out)
	}
	if !strings.Contains(out, "2. A Second Paper") {
		t.Fatalf("second entry missing: %q", out)
	}
}

func TestSearchEmptyFeed(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyFeed))
	})
	out, err := c.Search(context.Background(), "nothing matches this", 3, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out != "No results found on arXiv for your query." {
		t.Fatalf("output = %q", out)
	}
}

func TestSearchTimeFocusedQuery(t *testing.T) {
	var q, sortBy string
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query().Get("search_query")
		sortBy = r.URL.Query().Get("sortBy")
		w.Write([]byte(sampleFeed))
	})
	out, err := c.Search(context.Background(), "latest diffusion models", 3, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if sortBy != "submittedDate" {
		t.Fatalf("sortBy = %q, want submittedDate", sortBy)
	}
	if q != "all:latest diffusion models 2025 2024" {
		t.Fatalf("time-focused queries should be widened with recent years, got %q", q)
	}
	if !strings.Contains(out, "Enhanced query: 'latest diffusion models 2025 2024'") {
		t.Fatalf("enhanced query line missing: %q", out)
	}
	if !strings.Contains(out, "newest submissions (time-focused query)") {
		t.Fatalf("strategy line missing: %q", out)
	}
}

func TestSearchQualityFocusedQuery(t *testing.T) {
	var sortBy string
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		sortBy = r.URL.Query().Get("sortBy")
		w.Write([]byte(sampleFeed))
	})
	out, err := c.Search(context.Background(), "seminal papers on attention", 3, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if sortBy != "relevance" {
		t.Fatalf("sortBy = %q, want relevance", sortBy)
	}
	if !strings.Contains(out, "relevance/citations (quality-focused query)") {
		t.Fatalf("strategy line missing: %q", out)
	}
}

func TestSearchDebugAppendsRawXML(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	})
	out, err := c.Search(context.Background(), "sgd", 3, true)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(out, "--- RAW XML RESPONSE (truncated to 500 chars) ---") {
		t.Fatalf("debug section missing: %q", out)
	}
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("debug section should end with ellipsis")
	}
}

func TestSearchServerError(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	if _, err := c.Search(context.Background(), "sgd", 3, false); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestSearchUsesConfiguredDefaultMaxResults(t *testing.T) {
	var got string
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("max_results")
		w.Write([]byte(emptyFeed))
	})
	if _, err := c.Search(context.Background(), "sgd", 0, false); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != "5" {
		t.Fatalf("max_results = %q, want the configured default 5", got)
	}
}
