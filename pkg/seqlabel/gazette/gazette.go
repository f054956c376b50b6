// Package gazette builds the skill gazetteer: a deduplicated list of known
// technical skill names pulled from public sources. The gazetteer seeds
// prompt examples and lets the `gazetteer` command refresh the on-disk list.
package gazette

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// DefaultIconsURL is the GitHub contents API listing of skill-icons, one SVG
// per skill.
const DefaultIconsURL = "https://api.github.com/repos/tandpfun/skill-icons/contents/icons"

// Source fetches skill names from one upstream.
type Source interface {
	Fetch(ctx context.Context) ([]string, error)
}

// Fetcher aggregates multiple sources into one deduplicated, sorted list.
type Fetcher struct {
	Sources []Source
}

// Fetch runs all sources concurrently and merges their results. One failing
// source fails the whole fetch: a silently partial gazetteer is worse than
// an error.
func (f *Fetcher) Fetch(ctx context.Context) ([]string, error) {
	results := make([][]string, len(f.Sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range f.Sources {
		g.Go(func() error {
			skills, err := src.Fetch(ctx)
			if err != nil {
				return err
			}
			results[i] = skills
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []string
	for _, skills := range results {
		for _, s := range skills {
			key := strings.ToLower(s)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, s)
		}
	}
	sort.Strings(merged)
	return merged, nil
}

// GitHubIcons reads the skill-icons repository listing: every "Name.svg"
// entry is a skill, with -Dark/-Light variants collapsed.
type GitHubIcons struct {
	URL    string
	Client *http.Client
}

type contentsEntry struct {
	Name string `json:"name"`
}

// Fetch implements Source.
func (g *GitHubIcons) Fetch(ctx context.Context) ([]string, error) {
	url := g.URL
	if url == "" {
		url = DefaultIconsURL
	}

	body, err := get(ctx, g.Client, url)
	if err != nil {
		return nil, fmt.Errorf("fetch skill icons: %w", err)
	}

	var entries []contentsEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("fetch skill icons: %w", err)
	}

	var skills []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name, ".svg")
		if !ok {
			continue
		}
		name = strings.TrimSuffix(name, "-Dark")
		name = strings.TrimSuffix(name, "-Light")
		if name != "" {
			skills = append(skills, name)
		}
	}
	return skills, nil
}

// HTMLList scrapes skill names from list items or table cells of an HTML
// page. Matches the structure of curated "awesome"-style skill listings.
type HTMLList struct {
	URL    string
	Client *http.Client
}

// Fetch implements Source.
func (h *HTMLList) Fetch(ctx context.Context) ([]string, error) {
	body, err := get(ctx, h.Client, h.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch skill list: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse skill list: %w", err)
	}

	var skills []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "li" || n.Data == "td") {
			if text := nodeText(n); text != "" && len(text) <= 64 {
				skills = append(skills, text)
			}
			return // nested lists inside an item are part of its text
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return skills, nil
}

// nodeText concatenates the text content beneath n, whitespace-normalized.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
