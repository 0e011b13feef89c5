package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bugdesk/bugdesk/internal/config"
)

// TicketDocument is the denormalized ticket pushed to the search index.
type TicketDocument struct {
	ID             uint   `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	ProjectID      uint   `json:"project_id"`
	AssignedTo     *uint  `json:"assigned_to"`
	ReportedBy     uint   `json:"reported_by"`
	OrganizationID *uint  `json:"organization_id"`
}

// SearchIndexer is the external full-text index of tickets.
type SearchIndexer interface {
	Enabled() bool
	Index(ctx context.Context, doc *TicketDocument) error
	Remove(ctx context.Context, ticketID uint) error
	// Search returns matching ticket ids, best match first.
	Search(ctx context.Context, term string, orgID *uint, limit int) ([]uint, error)
}

// NewSearchIndexer returns the HTTP client when search is configured and a
// no-op indexer otherwise.
func NewSearchIndexer(cfg *config.SearchConfig) SearchIndexer {
	if !cfg.Enabled || cfg.Host == "" {
		return NoopIndexer{}
	}
	return NewHTTPIndexer(cfg)
}

type NoopIndexer struct{}

func (NoopIndexer) Enabled() bool { return false }

func (NoopIndexer) Index(context.Context, *TicketDocument) error { return nil }

func (NoopIndexer) Remove(context.Context, uint) error { return nil }

func (NoopIndexer) Search(context.Context, string, *uint, int) ([]uint, error) { return nil, nil }

// HTTPIndexer talks to a Meilisearch-compatible REST API.
type HTTPIndexer struct {
	host   string
	apiKey string
	index  string
	client *http.Client
}

func NewHTTPIndexer(cfg *config.SearchConfig) *HTTPIndexer {
	index := cfg.Index
	if index == "" {
		index = "tickets"
	}
	return &HTTPIndexer{
		host:   strings.TrimSuffix(cfg.Host, "/"),
		apiKey: cfg.APIKey,
		index:  index,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPIndexer) Enabled() bool { return true }

func (s *HTTPIndexer) Index(ctx context.Context, doc *TicketDocument) error {
	path := fmt.Sprintf("/indexes/%s/documents?primaryKey=id", s.index)
	return s.do(ctx, http.MethodPost, path, []*TicketDocument{doc}, nil)
}

func (s *HTTPIndexer) Remove(ctx context.Context, ticketID uint) error {
	path := fmt.Sprintf("/indexes/%s/documents/%d", s.index, ticketID)
	return s.do(ctx, http.MethodDelete, path, nil, nil)
}

type searchRequest struct {
	Q                    string   `json:"q"`
	Filter               string   `json:"filter,omitempty"`
	Limit                int      `json:"limit"`
	AttributesToRetrieve []string `json:"attributesToRetrieve"`
}

type searchResponse struct {
	Hits []struct {
		ID uint `json:"id"`
	} `json:"hits"`
}

func (s *HTTPIndexer) Search(ctx context.Context, term string, orgID *uint, limit int) ([]uint, error) {
	req := searchRequest{
		Q:                    term,
		Limit:                limit,
		AttributesToRetrieve: []string{"id"},
	}
	if orgID != nil {
		req.Filter = fmt.Sprintf("organization_id = %d", *orgID)
	}

	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("/indexes/%s/search", s.index), req, &resp); err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func (s *HTTPIndexer) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.host+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("search service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}
	}
	return nil
}
