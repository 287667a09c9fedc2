package categorization

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

const (
	historyBaseConfidence = 0.6
	historyVoteWeight     = 0.15
	historySearchSize     = 5
)

// historyDocument is one already-categorized ledger merchant.
type historyDocument struct {
	Merchant   string `json:"merchant"`
	Key        string `json:"key"`
	CategoryID string `json:"category_id"`
}

// HistoryHit is a search hit against the ledger history.
type HistoryHit struct {
	Merchant   string
	CategoryID string
	Score      float64
}

// HistoryIndex is an in-memory full-text index of categorized ledger
// merchants. It lets a new statement line inherit the category the user
// gave a similar merchant before.
type HistoryIndex struct {
	sanitizer *normalizer.MerchantSanitizer

	mu    sync.RWMutex
	index bleve.Index
}

// NewHistoryIndex creates an empty in-memory index.
func NewHistoryIndex(sanitizer *normalizer.MerchantSanitizer) (*HistoryIndex, error) {
	if sanitizer == nil {
		sanitizer = normalizer.NewMerchantSanitizer()
	}
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create history index: %w", err)
	}
	return &HistoryIndex{sanitizer: sanitizer, index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("merchant", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("key", textFieldMapping)
	docMapping.AddFieldMappingsAt("category_id", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// Rebuild replaces the index contents with the categorized transactions of
// the ledger. Uncategorized transactions are skipped.
func (h *HistoryIndex) Rebuild(transactions []ledger.Transaction) error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}

	batch := fresh.NewBatch()
	for i, tx := range transactions {
		if tx.CategoryID == "" || strings.TrimSpace(tx.Merchant) == "" {
			continue
		}
		id := tx.ID
		if id == "" {
			id = "tx_" + strconv.Itoa(i)
		}
		doc := historyDocument{
			Merchant:   tx.Merchant,
			Key:        h.sanitizer.Key(tx.Merchant),
			CategoryID: tx.CategoryID,
		}
		if err := batch.Index(id, doc); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("failed to index transaction %s: %w", id, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("failed to execute batch index: %w", err)
	}

	h.mu.Lock()
	old := h.index
	h.index = fresh
	h.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Search returns past merchants whose key contains every token of the
// merchant's key, allowing one edit per token.
func (h *HistoryIndex) Search(merchant string, limit int) ([]HistoryHit, error) {
	key := h.sanitizer.Key(merchant)
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = historySearchSize
	}

	matchQuery := bleve.NewMatchQuery(key)
	matchQuery.SetField("key")
	matchQuery.SetFuzziness(1)
	matchQuery.SetOperator(query.MatchQueryOperatorAnd)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.Fields = []string{"merchant", "category_id"}

	h.mu.RLock()
	res, err := h.index.Search(req)
	h.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("history search failed: %w", err)
	}

	hits := make([]HistoryHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		var result HistoryHit
		result.Score = hit.Score
		if v, ok := hit.Fields["merchant"].(string); ok {
			result.Merchant = v
		}
		if v, ok := hit.Fields["category_id"].(string); ok {
			result.CategoryID = v
		}
		hits = append(hits, result)
	}
	return hits, nil
}

// DocumentCount returns the number of indexed merchants.
func (h *HistoryIndex) DocumentCount() (uint64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index.DocCount()
}

// Close closes the index
func (h *HistoryIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index != nil {
		return h.index.Close()
	}
	return nil
}

// HistoryClassifier suggests the category most similar past merchants were
// filed under. Its confidence never reaches the auto-assign threshold.
type HistoryClassifier struct {
	index *HistoryIndex
}

func NewHistoryClassifier(index *HistoryIndex) *HistoryClassifier {
	return &HistoryClassifier{index: index}
}

func (c *HistoryClassifier) Classify(candidate ledger.CandidateTransaction, categories []ledger.Category) ledger.CategorizationVerdict {
	if c.index == nil {
		return noMatch()
	}
	hits, err := c.index.Search(candidate.Merchant, historySearchSize)
	if err != nil || len(hits) == 0 {
		return noMatch()
	}

	votes := make(map[string]int)
	var (
		winner   string
		merchant string
	)
	for _, hit := range hits {
		if _, ok := categoryByID(categories, hit.CategoryID); !ok {
			continue
		}
		votes[hit.CategoryID]++
		if winner == "" || votes[hit.CategoryID] > votes[winner] {
			winner = hit.CategoryID
			merchant = hit.Merchant
		}
	}
	if winner == "" {
		return noMatch()
	}

	share := float64(votes[winner]) / float64(len(hits))
	return ledger.CategorizationVerdict{
		CategoryID: winner,
		Confidence: historyBaseConfidence + historyVoteWeight*share,
		Reasoning:  fmt.Sprintf("Similar to past merchant: %s", merchant),
	}
}
