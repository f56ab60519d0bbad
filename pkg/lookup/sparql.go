package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const capabilitySPARQL = "sparql"

// BindingValue is one cell of a SPARQL JSON result row.
type BindingValue struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Language string `json:"xml:lang,omitempty"`
}

// Binding is one SPARQL result row keyed by variable name.
type Binding map[string]BindingValue

type sparqlResponse struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// EntityClaimsQuery builds a SPARQL query returning every direct statement
// of the given items with labels in language.
func EntityClaimsQuery(ids []string, language string) string {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, "wd:"+id)
	}
	return fmt.Sprintf(`SELECT ?item ?itemLabel ?itemDescription ?p ?o ?oLabel WHERE {
  VALUES ?item { %s }
  ?item ?p ?o .
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
}`, strings.Join(values, " "), language)
}

// QueryEntityClaims runs EntityClaimsQuery against the SPARQL endpoint.
func (c *Client) QueryEntityClaims(ctx context.Context, ids []string) ([]Binding, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("query", EntityClaimsQuery(ids, c.cfg.Language))
	params.Set("format", "json")

	var resp sparqlResponse
	if err := c.getJSON(ctx, capabilitySPARQL, c.cfg.SPARQLEndpoint, params, &resp); err != nil {
		return nil, err
	}
	return resp.Results.Bindings, nil
}
