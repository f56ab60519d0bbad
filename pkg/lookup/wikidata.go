package lookup

import (
	"context"
	"net/url"
	"strconv"

	"github.com/otherjamesbrown/qidlink/pkg/linking"
)

const capabilityEntitySearch = "wbsearchentities"

type entitySearchResponse struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"search"`
}

// SearchEntities queries Wikidata entity search for query in language.
// Results keep the service ranking.
func (c *Client) SearchEntities(ctx context.Context, query, language string) ([]linking.SearchResult, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", query)
	params.Set("language", language)
	params.Set("limit", strconv.Itoa(linking.MaxResults))
	params.Set("format", "json")

	var resp entitySearchResponse
	if err := c.getJSON(ctx, capabilityEntitySearch, c.cfg.EntityEndpoint, params, &resp); err != nil {
		return nil, err
	}

	results := make([]linking.SearchResult, 0, len(resp.Search))
	for _, item := range resp.Search {
		if item.ID == "" {
			continue
		}
		results = append(results, linking.SearchResult{
			Identifier:  item.ID,
			Label:       item.Label,
			Description: item.Description,
			Origin:      linking.OriginEntitySearch,
		})
	}
	return results, nil
}
