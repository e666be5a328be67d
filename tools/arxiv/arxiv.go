// Package arxiv implements literature search against the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/viso-study/visocode/config"
)

// Client queries the arXiv export API and formats results for synthesis
// context. Empty result sets come back as a "no results" string, not an
// error.
type Client struct {
	endpoint   string
	maxResults int
	http       *http.Client
}

// New creates a Client from the literature configuration.
func New(cfg config.LiteratureConfig) *Client {
	cfg = cfg.Normalize()
	return &Client{
		endpoint:   cfg.Endpoint,
		maxResults: cfg.MaxResults,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

var timeKeywords = []string{
	"latest", "recent", "current", "new", "state-of-the-art", "cutting-edge", "emerging",
}

var qualityKeywords = []string{
	"best", "most important", "seminal", "influential", "foundational",
	"top", "highly cited", "landmark", "groundbreaking", "classic",
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Authors []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// Search performs an arXiv query and returns formatted paper details. Query
// intent picks the sort order: quality vocabulary sorts by relevance, time
// vocabulary sorts by submission date and widens the query with recent
// years.
func (c *Client) Search(ctx context.Context, query string, maxResults int, debug bool) (string, error) {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	enhanced := query
	lower := strings.ToLower(query)
	timeFocused := containsAny(lower, timeKeywords)
	qualityFocused := containsAny(lower, qualityKeywords)

	var sortBy, sortReason string
	switch {
	case qualityFocused && !timeFocused:
		sortBy = "relevance"
		sortReason = "relevance/citations (quality-focused query)"
	case timeFocused:
		sortBy = "submittedDate"
		sortReason = "newest submissions (time-focused query)"
		if !strings.Contains(query, "2025") && !strings.Contains(query, "2024") {
			enhanced = query + " 2025 2024"
		}
	default:
		sortBy = "relevance"
		sortReason = "relevance (general query)"
	}

	params := url.Values{
		"search_query": {"all:" + enhanced},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {sortBy},
		"sortOrder":    {"descending"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building arxiv request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying arxiv: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}
	rawXML, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading arxiv response: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(rawXML, &feed); err != nil {
		return "", fmt.Errorf("parsing arxiv feed: %w", err)
	}

	var result string
	if len(feed.Entries) == 0 {
		result = "No results found on arXiv for your query."
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "Search strategy: sorted by %s\n", sortReason)
		if enhanced != query {
			fmt.Fprintf(&b, "Enhanced query: '%s'\n", enhanced)
		}
		b.WriteString("\n")
		for i, entry := range feed.Entries {
			authors := make([]string, 0, len(entry.Authors))
			for _, a := range entry.Authors {
				authors = append(authors, strings.TrimSpace(a.Name))
			}
			fmt.Fprintf(&b, "%d. %s\n   Authors: %s\n   Link: %s\n   Summary: %s\n\n",
				i+1,
				collapseWhitespace(entry.Title),
				strings.Join(authors, ", "),
				strings.TrimSpace(entry.ID),
				collapseWhitespace(entry.Summary))
		}
		result = strings.TrimRight(b.String(), "\n")
	}

	if debug {
		result += "\n\n--- RAW XML RESPONSE (truncated to 500 chars) ---\n" + truncate(string(rawXML), 500) + "..."
	}
	return result, nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
