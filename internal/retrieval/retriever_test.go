package retrieval

import (
	"context"
	"testing"

	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
)

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(_ context.Context, _, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubIndex struct {
	lastQuery QueryRequest
	resp      *QueryResponse
	err       error
}

func (s *stubIndex) Query(_ context.Context, _ string, req QueryRequest) (*QueryResponse, error) {
	s.lastQuery = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubIndex) DescribeIndex(context.Context, string) (*IndexDescription, error) {
	return nil, nil
}

func testRetriever(idx *stubIndex) *Retriever {
	r := NewRetriever(PineconeConfig{}, Options{TopK: 5, MinScore: 0.35}, stubEmbedder{}, logger.NewNop())
	r.newClient = func(string, PineconeConfig) (IndexClient, error) { return idx, nil }
	return r
}

func tenantCfg(id string) model.TenantAIConfig {
	return model.TenantAIConfig{
		TenantID:           id,
		APIKey:             "sk-test",
		RetrievalAPIKey:    "pc-test",
		RetrievalIndexHost: "idx.example.pinecone.io",
	}
}

func match(tenantID, content string, score float64) QueryMatch {
	return QueryMatch{
		ID:    "v1",
		Score: score,
		Metadata: map[string]any{
			"tenantId": tenantID,
			"content":  content,
			"fileName": "faq.pdf",
		},
	}
}

func TestRetrieveFiltersByTenant(t *testing.T) {
	idx := &stubIndex{resp: &QueryResponse{Matches: []QueryMatch{
		match("t1", "our refund policy", 0.9),
	}}}
	r := testRetriever(idx)

	got := r.Retrieve(context.Background(), tenantCfg("t1"), "refunds")
	if len(got) != 1 || got[0].Content != "our refund policy" {
		t.Fatalf("got %+v", got)
	}

	filter, ok := idx.lastQuery.Filter["tenantId"]
	if !ok || filter != "t1" {
		t.Errorf("query must carry tenant filter, got %v", idx.lastQuery.Filter)
	}
}

func TestRetrieveDropsForeignTenantPassages(t *testing.T) {
	idx := &stubIndex{resp: &QueryResponse{Matches: []QueryMatch{
		match("t1", "mine", 0.9),
		match("t2", "someone else's secrets", 0.95),
		{ID: "v3", Score: 0.9, Metadata: map[string]any{"content": "no tenant tag"}},
	}}}
	r := testRetriever(idx)

	got := r.Retrieve(context.Background(), tenantCfg("t1"), "q")
	if len(got) != 1 {
		t.Fatalf("want only the caller's passage, got %d", len(got))
	}
	if got[0].Content != "mine" {
		t.Errorf("got %+v", got[0])
	}
}

func TestRetrieveAppliesScoreFloor(t *testing.T) {
	idx := &stubIndex{resp: &QueryResponse{Matches: []QueryMatch{
		match("t1", "strong", 0.8),
		match("t1", "weak", 0.1),
	}}}
	r := testRetriever(idx)

	got := r.Retrieve(context.Background(), tenantCfg("t1"), "q")
	if len(got) != 1 || got[0].Content != "strong" {
		t.Fatalf("got %+v", got)
	}
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	idx := &stubIndex{err: context.DeadlineExceeded}
	r := testRetriever(idx)

	if got := r.Retrieve(context.Background(), tenantCfg("t1"), "q"); len(got) != 0 {
		t.Fatalf("index failure must yield no passages, got %+v", got)
	}

	// No retrieval credentials configured: silently no passages.
	cfg := tenantCfg("t1")
	cfg.RetrievalAPIKey = ""
	if got := r.Retrieve(context.Background(), cfg, "q"); got != nil {
		t.Fatalf("unconfigured tenant must yield nil, got %+v", got)
	}
}
