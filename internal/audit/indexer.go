// Package audit ships webhook deliveries to Elasticsearch for
// searchable audit history. Indexing is best effort: the relational
// webhook_events table stays the system of record.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"kyc-orchestrator/internal/common/database"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
)

type Indexer struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

// NewIndexer returns a nil-safe indexer. With a nil client every call
// is a no-op, which is how deployments without Elasticsearch run.
func NewIndexer(es *database.ElasticsearchClient, index string, log logger.Logger) *Indexer {
	return &Indexer{es: es, index: index, logger: log}
}

func (i *Indexer) IndexWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	if i == nil || i.es == nil {
		return nil
	}

	doc, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook event %d: %w", event.ID, err)
	}

	res, err := i.es.Client.Index(
		i.index,
		bytes.NewReader(doc),
		i.es.Client.Index.WithContext(ctx),
		i.es.Client.Index.WithDocumentID(strconv.FormatInt(event.ID, 10)),
	)
	if err != nil {
		return fmt.Errorf("index webhook event %d: %w", event.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index webhook event %d: %s", event.ID, res.Status())
	}

	i.logger.Debug("webhook event indexed", map[string]interface{}{
		"event_id": event.ID,
		"index":    i.index,
	})
	return nil
}
