// Package retrieval fetches tenant-scoped knowledge passages from the
// vector index for prompt grounding.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PineconeConfig holds the connection settings shared by all tenant handles.
// The API key is per tenant and supplied when a handle is built.
type PineconeConfig struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
}

func (c *PineconeConfig) defaults() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = "https://api.pinecone.io"
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		c.APIVersion = "2024-10"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// QueryRequest is a data-plane similarity query.
type QueryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector,omitempty"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata,omitempty"`
}

// QueryMatch is one scored vector returned by a query.
type QueryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryResponse is the data-plane query result.
type QueryResponse struct {
	Matches []QueryMatch `json:"matches"`
}

// IndexDescription is the control-plane description of an index.
type IndexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// IndexClient talks to one tenant's index with that tenant's credential.
type IndexClient interface {
	Query(ctx context.Context, host string, req QueryRequest) (*QueryResponse, error)
	DescribeIndex(ctx context.Context, indexName string) (*IndexDescription, error)
}

type indexClient struct {
	apiKey string
	cfg    PineconeConfig
	http   *http.Client
}

// NewIndexClient builds a handle bound to one API key.
func NewIndexClient(apiKey string, cfg PineconeConfig) (IndexClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing Pinecone API key")
	}
	cfg.defaults()
	return &indexClient{
		apiKey: apiKey,
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *indexClient) DescribeIndex(ctx context.Context, indexName string) (*IndexDescription, error) {
	indexName = strings.TrimSpace(indexName)
	if indexName == "" {
		return nil, fmt.Errorf("index name required")
	}
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/indexes/" + indexName
	out, err := doJSON[IndexDescription](c, ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Host) == "" {
		return nil, fmt.Errorf("pinecone describe_index returned empty host")
	}
	return out, nil
}

func (c *indexClient) Query(ctx context.Context, host string, req QueryRequest) (*QueryResponse, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("index host required")
	}
	if len(req.Vector) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	u := "https://" + host + "/query"
	return doJSON[QueryResponse](c, ctx, http.MethodPost, u, req)
}

func doJSON[T any](c *indexClient, ctx context.Context, method, url string, body any) (*T, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-Api-Version", c.cfg.APIVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pinecone http %d: %s", resp.StatusCode, string(raw))
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pinecone decode: %w", err)
	}
	return &out, nil
}
