package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region brave_tests

func TestBrave_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "basepay app", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("count"))
		w.Write([]byte(`{"web":{"results":[
			{"title":"<strong>BasePay</strong> &amp; friends","url":"https://basepay.xyz","description":"Pay on <strong>Base</strong>"},
			{"title":"Second","url":"https://two.io","description":""}
		]}}`))
	}))
	defer srv.Close()

	b := NewBrave(srv.URL, "key-1", srv.Client())
	results, err := b.Search(context.Background(), "basepay app", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "BasePay & friends", results[0].Title)
	assert.Equal(t, "Pay on Base", results[0].Description)
	assert.Equal(t, "https://basepay.xyz", results[0].URL)
}

func TestBrave_NonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewBrave(srv.URL, "k", srv.Client()).Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestBrave_TruncatesToCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"web":{"results":[{"title":"a"},{"title":"b"},{"title":"c"}]}}`))
	}))
	defer srv.Close()

	results, err := NewBrave(srv.URL, "k", srv.Client()).Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, ErrNoKey)

	s, err := New(Config{Key: "k", URL: "http://localhost"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

// #endregion brave_tests

// #region format_tests

func TestSummarize_TopThree(t *testing.T) {
	results := []Result{
		{Title: "A", Description: "one"},
		{Title: "B", Description: "two"},
		{Title: "C", Description: ""},
		{Title: "D", Description: "four"},
	}
	assert.Equal(t, "A: one\nB: two\nC: ", Summarize(results, 500))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, "", Summarize(nil, 500))
}

func TestSummarize_Cut(t *testing.T) {
	results := []Result{{Title: "T", Description: strings.Repeat("x", 800)}}
	assert.Len(t, Summarize(results, 500), 500)
}

// #endregion format_tests

// #region breaker_tests

type stubSearcher struct {
	calls int
	err   error
}

func (s *stubSearcher) Search(context.Context, string, int) ([]Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []Result{{Title: "ok"}}, nil
}

func TestBreaker_Opens(t *testing.T) {
	inner := &stubSearcher{err: errors.New("boom")}
	s := WithBreaker(inner)
	s.Search(context.Background(), "q", 3)
	s.Search(context.Background(), "q", 3)
	_, err := s.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestBreaker_PassesResults(t *testing.T) {
	res, err := WithBreaker(&stubSearcher{}).Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", res[0].Title)
}

// #endregion breaker_tests
