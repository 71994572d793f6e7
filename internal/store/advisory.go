package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"movienight-workers/internal/models"
)

// AdvisoryIndex looks up per-movie content advisories in Elasticsearch.
type AdvisoryIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewAdvisoryIndex(es *elasticsearch.Client, index string) *AdvisoryIndex {
	return &AdvisoryIndex{es: es, index: index}
}

type advisoryDoc struct {
	MovieID     int64  `json:"movie_id"`
	Violence    string `json:"violence"`
	SexNudity   string `json:"sex_nudity"`
	Profanity   string `json:"profanity"`
	Substances  string `json:"substances"`
	Frightening string `json:"frightening"`
}

func (d advisoryDoc) toAdvisory() models.ContentAdvisory {
	adv := models.ContentAdvisory{}
	for cat, raw := range map[models.AdvisoryCategory]string{
		models.AdvisoryViolence:    d.Violence,
		models.AdvisorySexNudity:   d.SexNudity,
		models.AdvisoryProfanity:   d.Profanity,
		models.AdvisorySubstances:  d.Substances,
		models.AdvisoryFrightening: d.Frightening,
	} {
		if sev, err := models.ParseSeverity(raw); err == nil {
			adv[cat] = sev
		}
	}
	return adv
}

type advisorySearchResponse struct {
	Hits struct {
		Hits []struct {
			Source advisoryDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Advisories returns the advisory for each id that has an indexed document.
func (a *AdvisoryIndex) Advisories(ctx context.Context, ids []int64) (map[int64]models.ContentAdvisory, error) {
	out := make(map[int64]models.ContentAdvisory)
	if len(ids) == 0 {
		return out, nil
	}

	query := map[string]interface{}{
		"size": len(ids),
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"terms": map[string]interface{}{"movie_id": ids}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal advisory query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{a.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, a.es)
	if err != nil {
		return nil, fmt.Errorf("advisory search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, fmt.Errorf("advisory search error [%s]: %s", res.Status(), string(msg))
	}

	var parsed advisorySearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse advisory response: %w", err)
	}

	for _, hit := range parsed.Hits.Hits {
		out[hit.Source.MovieID] = hit.Source.toAdvisory()
	}
	return out, nil
}
