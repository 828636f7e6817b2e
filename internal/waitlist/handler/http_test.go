package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synq/backend/internal/waitlist/domain"
	"synq/backend/internal/waitlist/repository"
)

type memStore struct {
	mu      sync.Mutex
	entries []*domain.Entry
	err     error
	limit   int
}

func (s *memStore) Add(ctx context.Context, e *domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, x := range s.entries {
		if x.Email == e.Email {
			return repository.ErrDuplicate
		}
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memStore) List(ctx context.Context, limit int) ([]*domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*domain.Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func postAdd(h *Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Add(rec, httptest.NewRequest(http.MethodPost, "/api/waitlist/add", strings.NewReader(body)))
	return rec
}

func TestAdd(t *testing.T) {
	store := &memStore{}
	h := NewHandler(store, nil)

	rec := postAdd(h, `{"email":" Early@Example.com "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "early@example.com", store.entries[0].Email)
	assert.NotEmpty(t, store.entries[0].ID)

	assert.Equal(t, http.StatusConflict, postAdd(h, `{"email":"early@example.com"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postAdd(h, `{"email":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, postAdd(h, ``).Code)
	assert.Equal(t, http.StatusBadRequest, postAdd(h, `{"email":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postAdd(h, `{`).Code)

	store.err = errors.New("disk full")
	assert.Equal(t, http.StatusInternalServerError, postAdd(h, `{"email":"x@example.com"}`).Code)
}

func TestList(t *testing.T) {
	store := &memStore{}
	h := NewHandler(store, nil)
	postAdd(h, `{"email":"a@example.com"}`)
	postAdd(h, `{"email":"b@example.com"}`)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/waitlist?limit=1000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxListLimit, store.limit)

	var body struct {
		Entries []entryResponse `json:"entries"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "b@example.com", body.Entries[0].Email)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/waitlist?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.err = errors.New("timeout")
	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/waitlist", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
