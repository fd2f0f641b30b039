package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNavigate_LoadsDocument verifies a successful navigation
func TestNavigate_LoadsDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Hello</h1></body></html>`))
	}))
	defer server.Close()

	s := New(Options{})
	defer s.Close()

	err := s.Navigate(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, server.URL, s.Location())

	doc, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, "Hello", doc.Find("h1").Text())

	html, err := s.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Hello</h1>")
}

// TestNavigate_HTTPError verifies non-200 responses fail navigation
func TestNavigate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := New(Options{})
	defer s.Close()

	err := s.Navigate(context.Background(), server.URL+"/gone")
	assert.Error(t, err)
}

// TestNavigate_FailureKeepsPreviousPage verifies per-page replacement semantics
func TestNavigate_FailureKeepsPreviousPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.Write([]byte(`<html><body><h1>First</h1></body></html>`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := New(Options{})
	defer s.Close()

	require.NoError(t, s.Navigate(context.Background(), server.URL+"/ok"))
	require.Error(t, s.Navigate(context.Background(), server.URL+"/broken"))

	doc, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, "First", doc.Find("h1").Text(), "failed navigation keeps the prior page current")
	assert.Equal(t, server.URL+"/ok", s.Location())
}

// TestNavigate_InvalidURL verifies scheme validation
func TestNavigate_InvalidURL(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	assert.Error(t, s.Navigate(context.Background(), "ftp://site.example/x"))
	assert.Error(t, s.Navigate(context.Background(), "://not-a-url"))
}

// TestDocument_BeforeNavigate verifies the not-loaded sentinel
func TestDocument_BeforeNavigate(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	_, err := s.Document()
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = s.HTML()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

// TestNavigate_RobotsBlocked verifies the robots.txt gate
func TestNavigate_RobotsBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer server.Close()

	s := New(Options{CheckRobots: true})
	defer s.Close()

	err := s.Navigate(context.Background(), server.URL+"/private/page")
	assert.ErrorIs(t, err, ErrBlockedByRobots)

	err = s.Navigate(context.Background(), server.URL+"/public/page")
	assert.NoError(t, err)
}

// TestNavigate_RobotsUnavailableAllows verifies a missing robots.txt allows fetching
func TestNavigate_RobotsUnavailableAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer server.Close()

	s := New(Options{CheckRobots: true})
	defer s.Close()

	assert.NoError(t, s.Navigate(context.Background(), server.URL+"/anything"))
}

// TestNavigate_ContextTimeout verifies the caller's deadline bounds the fetch
func TestNavigate_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`<html></html>`))
	}))
	defer server.Close()

	s := New(Options{})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, s.Navigate(ctx, server.URL))
}
