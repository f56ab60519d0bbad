package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
)

const (
	capabilityOpenSearch = "opensearch"
	capabilityTextSearch = "list_search"
	capabilityPageProps  = "pageprops"

	fullTextLimit = 3
)

// FullTextResults runs a Wikipedia title search and maps each title to its
// Wikidata item. Titles without an item are skipped.
func (c *Client) FullTextResults(ctx context.Context, query string) ([]linking.SearchResult, error) {
	titles, err := c.SearchFullText(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]linking.SearchResult, 0, len(titles))
	for _, title := range titles {
		id, err := c.ResolveIdentifier(ctx, title)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Debug("Skipping title without identifier",
				logging.F("title", title), logging.Err(err))
			continue
		}
		if id == "" {
			continue
		}
		results = append(results, linking.SearchResult{
			Identifier:  id,
			Label:       title,
			Description: "Wikipedia: " + title,
			Origin:      linking.OriginFullTextSearch,
		})
	}
	return results, nil
}

// SearchFullText returns page titles matching query. It tries the opensearch
// prefix API first and falls back to full-text search when that finds nothing.
func (c *Client) SearchFullText(ctx context.Context, query string) ([]string, error) {
	titles, err := c.openSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(titles) > 0 {
		return titles, nil
	}
	return c.textSearch(ctx, query)
}

func (c *Client) openSearch(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(fullTextLimit))
	params.Set("namespace", "0")
	params.Set("format", "json")

	// The response is a positional array: [query, [titles], [descriptions], [urls]].
	var raw []json.RawMessage
	if err := c.getJSON(ctx, capabilityOpenSearch, c.cfg.FullTextEndpoint, params, &raw); err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, qerrors.NewMalformedError(capabilityOpenSearch, errors.New("opensearch response has no title list"))
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, qerrors.NewMalformedError(capabilityOpenSearch, err)
	}
	return titles, nil
}

type textSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

func (c *Client) textSearch(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(fullTextLimit))
	params.Set("format", "json")

	var resp textSearchResponse
	if err := c.getJSON(ctx, capabilityTextSearch, c.cfg.FullTextEndpoint, params, &resp); err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(resp.Query.Search))
	for _, s := range resp.Query.Search {
		if s.Title != "" {
			titles = append(titles, s.Title)
		}
	}
	return titles, nil
}

type pagePropsResponse struct {
	Query struct {
		Pages map[string]struct {
			PageProps struct {
				WikibaseItem string `json:"wikibase_item"`
			} `json:"pageprops"`
		} `json:"pages"`
	} `json:"query"`
}

// ResolveIdentifier returns the Wikidata item linked to a Wikipedia page
// title, or "" when the page has none.
func (c *Client) ResolveIdentifier(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "pageprops")
	params.Set("ppprop", "wikibase_item")
	params.Set("titles", title)
	params.Set("format", "json")

	var resp pagePropsResponse
	if err := c.getJSON(ctx, capabilityPageProps, c.cfg.FullTextEndpoint, params, &resp); err != nil {
		return "", err
	}

	ids := make([]string, 0, len(resp.Query.Pages))
	for id := range resp.Query.Pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if item := resp.Query.Pages[id].PageProps.WikibaseItem; item != "" {
			return item, nil
		}
	}
	return "", nil
}
