package inits

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchapi"
	"go.uber.org/zap"

	d "social_graph_services/src/directory"
	"social_graph_services/src/search"
)

func CreateOpenSearchClient(addresses []string) (*opensearch.Client, error) {
	client, err := opensearch.NewClient(opensearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	return client, nil
}

// InitOpenSearch creates the user index when missing and indexes every user in dir.
func InitOpenSearch(ctx context.Context, index *search.OpenSearchIndex, dir d.Directory, logger *zap.Logger) error {
	exists, err := opensearchapi.IndicesExistsRequest{Index: []string{index.Index}}.Do(ctx, index.Client)
	if err != nil {
		return fmt.Errorf("check index %q: %w", index.Index, err)
	}
	exists.Body.Close()

	if exists.StatusCode == http.StatusNotFound {
		res, err := opensearchapi.IndicesCreateRequest{
			Index: index.Index,
			Body:  strings.NewReader(search.IndexMapping),
		}.Do(ctx, index.Client)
		if err != nil {
			return fmt.Errorf("create index %q: %w", index.Index, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("create index %q: %s", index.Index, res.String())
		}
		logger.Info("created search index", zap.String("index", index.Index))
	}

	users, err := dir.Query(ctx, nil)
	if err != nil {
		return fmt.Errorf("load users for indexing: %w", err)
	}
	for _, user := range users {
		if err := index.IndexUser(ctx, user); err != nil {
			return err
		}
	}
	logger.Info("indexed users", zap.String("index", index.Index), zap.Int("count", len(users)))
	return nil
}
