package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
	"github.com/solacrm/backend/pkg/metrics"
)

// Options bound a retrieval call.
type Options struct {
	TopK     int
	MinScore float64
}

// Retriever answers knowledge-base queries against a tenant's own index.
// Retrieval is advisory: an unreachable or misconfigured index degrades to
// zero passages, never to a failed turn.
type Retriever struct {
	cfg      PineconeConfig
	opts     Options
	embedder Embedder
	log      *logger.Logger

	mu      sync.Mutex
	handles map[string]IndexClient

	// newClient is swappable for tests.
	newClient func(apiKey string, cfg PineconeConfig) (IndexClient, error)
}

// NewRetriever creates a retriever with a per-credential handle cache.
func NewRetriever(cfg PineconeConfig, opts Options, embedder Embedder, log *logger.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Retriever{
		cfg:       cfg,
		opts:      opts,
		embedder:  embedder,
		log:       log.WithComponent("retrieval"),
		handles:   make(map[string]IndexClient),
		newClient: NewIndexClient,
	}
}

// Retrieve returns up to TopK passages for the query, hard-scoped to the
// tenant. Passages whose metadata carries a different tenant id are dropped
// even if the index filter let them through.
func (r *Retriever) Retrieve(ctx context.Context, tenant model.TenantAIConfig, query string) []model.RetrievedPassage {
	if tenant.RetrievalAPIKey == "" || tenant.RetrievalIndexHost == "" {
		return nil
	}

	vector, err := r.embedder.Embed(ctx, tenant.APIKey, query)
	if err != nil {
		r.log.Warn("knowledge retrieval skipped: embedding failed",
			zap.String("tenant_id", tenant.TenantID), zap.Error(err))
		return nil
	}

	client, err := r.handleFor(tenant.RetrievalAPIKey)
	if err != nil {
		r.log.Warn("knowledge retrieval skipped: index handle",
			zap.String("tenant_id", tenant.TenantID), zap.Error(err))
		return nil
	}

	resp, err := client.Query(ctx, tenant.RetrievalIndexHost, QueryRequest{
		Vector:          vector,
		TopK:            r.opts.TopK,
		Filter:          map[string]any{"tenantId": tenant.TenantID},
		IncludeMetadata: true,
	})
	if err != nil {
		r.log.Warn("knowledge retrieval skipped: index query failed",
			zap.String("tenant_id", tenant.TenantID), zap.Error(err))
		return nil
	}

	passages := make([]model.RetrievedPassage, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Score < r.opts.MinScore {
			continue
		}
		p, ok := passageFromMatch(m)
		if !ok {
			continue
		}
		if p.TenantID != tenant.TenantID {
			r.log.Error("dropped passage with foreign tenant id",
				zap.String("tenant_id", tenant.TenantID),
				zap.String("passage_tenant_id", p.TenantID),
				zap.String("vector_id", m.ID))
			continue
		}
		passages = append(passages, p)
	}

	metrics.RetrievalPassages.Observe(float64(len(passages)))
	return passages
}

func (r *Retriever) handleFor(apiKey string) (IndexClient, error) {
	sum := sha256.Sum256([]byte(apiKey))
	key := hex.EncodeToString(sum[:8])

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.handles[key]; ok {
		return c, nil
	}
	c, err := r.newClient(apiKey, r.cfg)
	if err != nil {
		return nil, err
	}
	r.handles[key] = c
	return c, nil
}

func passageFromMatch(m QueryMatch) (model.RetrievedPassage, bool) {
	content, _ := m.Metadata["content"].(string)
	if content == "" {
		// Some ingestion versions wrote the chunk under "text".
		content, _ = m.Metadata["text"].(string)
	}
	if content == "" {
		return model.RetrievedPassage{}, false
	}

	tenantID, _ := m.Metadata["tenantId"].(string)
	fileName, _ := m.Metadata["fileName"].(string)
	fileType, _ := m.Metadata["fileType"].(string)
	sheet, _ := m.Metadata["sheet"].(string)
	wholeRow, _ := m.Metadata["wholeRow"].(bool)

	return model.RetrievedPassage{
		Content:  content,
		TenantID: tenantID,
		FileName: fileName,
		FileType: fileType,
		Sheet:    sheet,
		WholeRow: wholeRow,
		Score:    m.Score,
	}, true
}
