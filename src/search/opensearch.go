package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchapi"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

// OpenSearchIndex keeps a lowercase copy of names in OpenSearch and loads the hits from the directory.
type OpenSearchIndex struct {
	Client *opensearch.Client
	Index  string
	Dir    d.Directory
}

// IndexMapping stores the lookup fields as keywords so wildcard queries see whole values.
const IndexMapping = `{
	"settings": {"index": {"number_of_shards": 1, "number_of_replicas": 1}},
	"mappings": {"properties": {
		"id": {"type": "keyword"},
		"display_name": {"type": "text"},
		"username": {"type": "text"},
		"lookup": {"type": "keyword"},
		"username_lookup": {"type": "keyword"},
		"result_type": {"type": "keyword"}
	}}
}`

func newDocument(user m.User) m.Search {
	return m.Search{
		ID:             user.ID,
		DisplayName:    user.DisplayName,
		Username:       user.Username,
		Lookup:         strings.ToLower(user.DisplayName),
		UsernameLookup: strings.ToLower(user.Username),
		ResultType:     m.SearchResultUser,
	}
}

func (index OpenSearchIndex) IndexUser(ctx context.Context, user m.User) error {
	data, err := json.Marshal(newDocument(user))
	if err != nil {
		return err
	}

	req := opensearchapi.IndexRequest{
		Index:      index.Index,
		DocumentID: user.ID,
		Body:       strings.NewReader(string(data)),
	}
	res, err := req.Do(ctx, index.Client)
	if err != nil {
		return fmt.Errorf("index user %q: %w", user.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index user %q: %s", user.ID, res.String())
	}
	return nil
}

func (index OpenSearchIndex) Search(ctx context.Context, selfID string, lookup string) ([]m.User, error) {
	body, ok := buildQuery(selfID, lookup)
	if !ok {
		return []m.User{}, nil
	}

	req := opensearchapi.SearchRequest{
		Index: []string{index.Index},
		Body:  strings.NewReader(body),
	}
	res, err := req.Do(ctx, index.Client)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search users: %s", res.String())
	}

	ids, err := hitIDs(res.Body)
	if err != nil {
		return nil, err
	}
	users, err := d.GetMany(ctx, index.Dir, ids)
	if err != nil {
		return nil, err
	}

	// the index can lag behind profile edits
	matched := users[:0]
	for _, user := range users {
		if Matches(user, selfID, lookup) {
			matched = append(matched, user)
		}
	}
	return matched, nil
}

func buildQuery(selfID string, lookup string) (string, bool) {
	query := strings.ToLower(strings.TrimSpace(lookup))
	if query == "" {
		return "", false
	}

	var should []map[string]interface{}
	wildcard := func(field string, term string) map[string]interface{} {
		return map[string]interface{}{"wildcard": map[string]interface{}{field: map[string]interface{}{"value": "*" + escapeWildcard(term) + "*"}}}
	}
	if strings.HasPrefix(query, "@") {
		should = append(should, wildcard("username_lookup", query[1:]))
	} else {
		should = append(should, wildcard("lookup", query), wildcard("username_lookup", query))
	}

	body := map[string]interface{}{
		"size": maxResults,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
				"must_not":             []interface{}{map[string]interface{}{"ids": map[string]interface{}{"values": []string{selfID}}}},
			},
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func escapeWildcard(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return replacer.Replace(term)
}

func hitIDs(body io.Reader) ([]string, error) {
	var result struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]string, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
