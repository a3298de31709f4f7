package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/modfinder/internal/storage"
)

func TestFetcher_Get(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer ts.Close()

	var seen []Exchange
	f := newTestFetcher(t, FetchConfig{
		Observer: ObserverFunc(func(ctx context.Context, ex Exchange) { seen = append(seen, ex) }),
	})

	ctx := WithLabels(context.Background(), Labels{Stage: storage.StageSearch, Keyword: "hair", Engine: "Google"})
	page, err := f.Get(ctx, ts.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(page.Body))
	assert.Equal(t, "text/html", page.ContentType())
	assert.Equal(t, http.MethodGet, page.Method)
	assert.False(t, page.DetectedBot)
	assert.NotZero(t, page.Duration)

	require.Len(t, seen, 1)
	assert.Equal(t, storage.StageSearch, seen[0].Stage)
	assert.Equal(t, "hair", seen[0].Keyword)
	assert.Equal(t, "Google", seen[0].Engine)
	assert.Same(t, page, seen[0].Page)
	assert.NoError(t, seen[0].Err)
}

func TestFetcher_NonSuccessStatusIsAPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<a href="https://nexusmods.com/x">x</a>`))
	}))
	defer ts.Close()

	page, err := newTestFetcher(t, FetchConfig{}).Get(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, page.StatusCode)
	assert.True(t, page.DetectedBot)
	assert.Equal(t, "Cloudflare", page.DetectionSrc)
	assert.Equal(t, []string{"https://nexusmods.com/x"}, ExtractLinks(page.Body))
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	var observed error
	f := newTestFetcher(t, FetchConfig{
		PageTimeout: 20 * time.Millisecond,
		Observer:    ObserverFunc(func(ctx context.Context, ex Exchange) { observed = ex.Err }),
	})

	page, err := f.Get(context.Background(), ts.URL)
	assert.Nil(t, page)

	var fe *FetchError
	require.True(t, errors.As(err, &fe), "expected *FetchError, got %T", err)
	assert.True(t, fe.Timeout())
	assert.Equal(t, http.MethodGet, fe.Method)
	assert.Equal(t, err, observed)
}

func TestFetcher_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(t, FetchConfig{}).Get(context.Background(), "http://bad host/")
	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestFetcher_HeadFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/mod.zip", http.StatusFound)
	})
	mux.HandleFunc("/files/mod.zip", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "application/zip")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	page, err := newTestFetcher(t, FetchConfig{}).Head(context.Background(), ts.URL+"/download")
	require.NoError(t, err)
	assert.Equal(t, "application/zip", page.ContentType())
	assert.True(t, strings.HasSuffix(page.FinalURL, "/files/mod.zip"))
	assert.Empty(t, page.Body)
}

func TestFetcher_StrayPercentIsEscaped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/a%zz.zip", r.URL.Path)
		w.Header().Set("Content-Type", "application/zip")
	}))
	defer ts.Close()

	// "%25" decodes to a bare '%' during link extraction.
	target := ts.URL + Unescape("/files/a%25zz.zip")
	assert.Equal(t, ts.URL+"/files/a%zz.zip", target)

	page, err := newTestFetcher(t, FetchConfig{}).Head(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, "application/zip", page.ContentType())
	assert.Equal(t, target, page.URL)
}

func TestRequote(t *testing.T) {
	assert.Equal(t, "https://x.test/a%20b", requote("https://x.test/a%20b"))
	assert.Equal(t, "https://x.test/a%25zz.zip", requote("https://x.test/a%zz.zip"))
	assert.Equal(t, "https://x.test/100%25", requote("https://x.test/100%"))
	assert.Equal(t, "https://x.test/plain", requote("https://x.test/plain"))
}

func TestFetcher_BodyLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer ts.Close()

	page, err := newTestFetcher(t, FetchConfig{MaxBodyBytes: 100}).Get(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Len(t, page.Body, 100)
}

func TestNewFetcher_BadProxy(t *testing.T) {
	_, err := NewFetcher(FetchConfig{Proxies: []string{"http://"}})
	assert.Error(t, err)
}

func TestFetcher_RoutesThroughProxy(t *testing.T) {
	px := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("via proxy " + r.URL.String()))
	}))
	defer px.Close()

	f := newTestFetcher(t, FetchConfig{Proxies: []string{px.URL}})
	page, err := f.Get(context.Background(), "http://nexusmods.com/mods/1")
	require.NoError(t, err)
	assert.Equal(t, "via proxy http://nexusmods.com/mods/1", string(page.Body))
}
