package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
)

const capabilityGetEntities = "wbgetentities"

// MaxEntityBatch is the most identifiers one GetEntities call accepts.
const MaxEntityBatch = 50

type langValue struct {
	Value string `json:"value"`
}

type getEntitiesResponse struct {
	Entities map[string]struct {
		ID           string                 `json:"id"`
		Missing      *string                `json:"missing"`
		Labels       map[string]langValue   `json:"labels"`
		Descriptions map[string]langValue   `json:"descriptions"`
		Aliases      map[string][]langValue `json:"aliases"`
	} `json:"entities"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// GetEntities fetches label, description and aliases in the configured
// language for up to MaxEntityBatch identifiers in one request.
// Identifiers the service does not know are absent from the returned map.
func (c *Client) GetEntities(ctx context.Context, ids []string) (map[string]linking.Entity, error) {
	if len(ids) == 0 {
		return map[string]linking.Entity{}, nil
	}
	if len(ids) > MaxEntityBatch {
		return nil, fmt.Errorf("get entities: %d identifiers exceeds batch limit %d: %w", len(ids), MaxEntityBatch, qerrors.ErrValidation)
	}

	lang := c.cfg.Language
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", strings.Join(ids, "|"))
	params.Set("props", "labels|descriptions|aliases")
	params.Set("languages", lang)
	params.Set("format", "json")

	var resp getEntitiesResponse
	if err := c.getJSON(ctx, capabilityGetEntities, c.cfg.EntityEndpoint, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &qerrors.LookupError{
			Code:    qerrors.ErrClientRequest,
			Stage:   capabilityGetEntities,
			Message: resp.Error.Code + ": " + resp.Error.Info,
		}
	}

	out := make(map[string]linking.Entity, len(resp.Entities))
	for key, e := range resp.Entities {
		if e.Missing != nil || e.ID == "" {
			continue
		}
		ent := linking.Entity{
			Identifier:  e.ID,
			Label:       e.Labels[lang].Value,
			Description: e.Descriptions[lang].Value,
		}
		for _, a := range e.Aliases[lang] {
			ent.Aliases = append(ent.Aliases, a.Value)
		}
		out[key] = ent
	}
	return out, nil
}
