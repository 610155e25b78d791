package inference

import (
	"context"
	"fmt"
	"strings"
)

// NERClient tags entities with a token classification server.
type NERClient struct {
	c *client
}

type nerRequest struct {
	Text string `json:"text"`
}

// nerEntity accepts both grouped (entity_group, word) and ungrouped (entity) output.
type nerEntity struct {
	Word        string `json:"word"`
	Text        string `json:"text"`
	EntityGroup string `json:"entity_group"`
	Entity      string `json:"entity"`
	Type        string `json:"type"`
}

// NewNERClient returns a client for POST {base}/ner.
func NewNERClient(cfg HTTPConfig) (*NERClient, error) {
	c, err := newClient(cfg.BaseURL, cfg.Client, cfg.Timeout, cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("entity tagging client: %w", err)
	}
	return &NERClient{c: c}, nil
}

// TagEntities returns the entities found in text in the order the server reports them.
func (n *NERClient) TagEntities(ctx context.Context, text string) ([]Entity, error) {
	var out []nerEntity
	if err := n.c.postJSON(ctx, "/ner", nerRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return normalizeEntities(out), nil
}

// normalizeEntities strips BIO prefixes and drops entries missing text or type.
func normalizeEntities(raw []nerEntity) []Entity {
	out := make([]Entity, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(firstNonEmpty(r.Word, r.Text))
		typ := strings.TrimSpace(firstNonEmpty(r.EntityGroup, r.Entity, r.Type))
		if p, rest, ok := strings.Cut(typ, "-"); ok && (p == "B" || p == "I") {
			typ = rest
		}
		if text == "" || typ == "" {
			continue
		}
		out = append(out, Entity{Text: text, Type: strings.ToUpper(typ)})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
