package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"busticket/internal/config"
	"busticket/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// RouteDocument - документ маршрута в индексе
type RouteDocument struct {
	ID            int64             `json:"id"`
	StartLocation string            `json:"start_location"`
	EndLocation   string            `json:"end_location"`
	StartKey      string            `json:"start_key"`
	EndKey        string            `json:"end_key"`
	DistanceKm    *int              `json:"distance_km,omitempty"`
	DurationMin   *int              `json:"duration_min,omitempty"`
	Buses         []models.RouteBus `json:"buses"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Result converts the document into the API search result.
func (d RouteDocument) Result() models.RouteSearchResult {
	buses := d.Buses
	if buses == nil {
		buses = []models.RouteBus{}
	}
	return models.RouteSearchResult{
		ID:            d.ID,
		StartLocation: d.StartLocation,
		EndLocation:   d.EndLocation,
		DistanceKm:    d.DistanceKm,
		DurationMin:   d.DurationMin,
		Buses:         buses,
	}
}

// ElasticsearchClient представляет клиент для работы с Elasticsearch
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает новый клиент Elasticsearch
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	return newClient(cfg, nil)
}

func newClient(cfg config.ElasticsearchConfig, transport http.RoundTripper) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
		Transport:     transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeout())
	defer cancel()
	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	// Location keys are matched exactly, display names stay searchable as text
	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":             map[string]interface{}{"type": "long"},
				"start_location": map[string]interface{}{"type": "text"},
				"end_location":   map[string]interface{}{"type": "text"},
				"start_key":      map[string]interface{}{"type": "keyword"},
				"end_key":        map[string]interface{}{"type": "keyword"},
				"distance_km":    map[string]interface{}{"type": "integer"},
				"duration_min":   map[string]interface{}{"type": "integer"},
				"buses": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"busId":          map[string]interface{}{"type": "long"},
						"busNumber":      map[string]interface{}{"type": "keyword"},
						"availableSeats": map[string]interface{}{"type": "integer"},
					},
				},
				"updated_at": map[string]interface{}{"type": "date"},
			},
		},
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// SearchRoutes ищет маршруты по нормализованным ключам
func (c *ElasticsearchClient) SearchRoutes(ctx context.Context, startKey, endKey string) ([]models.RouteSearchResult, error) {
	searchRequest := map[string]interface{}{
		"query": buildSearchQuery(startKey, endKey),
		"sort": []map[string]interface{}{
			{"id": map[string]interface{}{"order": "asc"}},
		},
		"size": 100,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source RouteDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]models.RouteSearchResult, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		results[i] = hit.Source.Result()
	}

	return results, nil
}

// buildSearchQuery строит поисковый запрос: точное совпадение ключей
func buildSearchQuery(startKey, endKey string) map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"filter": []map[string]interface{}{
				{"term": map[string]interface{}{"start_key": startKey}},
				{"term": map[string]interface{}{"end_key": endKey}},
			},
		},
	}
}

// IndexRoute индексирует маршрут
func (c *ElasticsearchClient) IndexRoute(ctx context.Context, doc *RouteDocument) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(doc.ID, 10),
		Body:       bytes.NewReader(docJSON),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index route: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteRoute удаляет маршрут из индекса
func (c *ElasticsearchClient) DeleteRoute(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
