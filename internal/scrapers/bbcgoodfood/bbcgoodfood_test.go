package bbcgoodfood

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipescrape/recipescrape/internal/cache"
	"github.com/recipescrape/recipescrape/internal/output"
	"github.com/recipescrape/recipescrape/internal/prompt"
	"github.com/recipescrape/recipescrape/internal/scraper"
	"github.com/recipescrape/recipescrape/internal/webpage"
	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/retry"
)

const collection = `<html><body>
<h3 id="title-123"><a href="/recipes/chicken-pie">Chicken pie</a></h3>
<h3 id="title-456"><span><a href="https://www.bbcgoodfood.com/recipes/beef-stew">Stew</a></span></h3>
<h3 id="heading"><a href="/recipes/not-a-recipe">Nope</a></h3>
<h3 id="title-789"><a href="/recipes/chicken-pie">Duplicate</a></h3>
<h3 id="title-000">No link</h3>
<h2 id="title-111"><a href="/recipes/wrong-tag">Wrong tag</a></h2>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSuffix(r.URL.Path, "/") != "/recipes/collection/easy-dinner" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, collection)
	}))
	t.Cleanup(server.Close)
	return server
}

func newFetcher() *webpage.Client {
	cfg := webpage.DefaultConfig()
	cfg.Retry = retry.Config{MaxAttempts: 1}
	return webpage.NewClient(cfg)
}

func TestRecipeURLs(t *testing.T) {
	server := newServer(t)

	urls, err := RecipeURLs(context.Background(), newFetcher(), server.URL+"/recipes/collection/easy-dinner")
	require.NoError(t, err)
	assert.Equal(t, []string{
		server.URL + "/recipes/chicken-pie",
		"https://www.bbcgoodfood.com/recipes/beef-stew",
	}, urls)
}

func TestRecipeURLs_FetchError(t *testing.T) {
	server := newServer(t)

	_, err := RecipeURLs(context.Background(), newFetcher(), server.URL+"/missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeHTTPStatus))
}

func runScraper(t *testing.T, input string) (*output.MemorySink, error) {
	t.Helper()
	store, err := cache.New(&cache.Config{Path: filepath.Join(t.TempDir(), "cache.json"), SweepInterval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sink := output.NewMemorySink()
	runner, err := scraper.NewRunner(scraper.RunnerConfig{
		Registry: scraper.NewRegistry(New()),
		Store:    store,
		Fetcher:  newFetcher(),
		Output:   sink,
		Prompt:   prompt.New(strings.NewReader(input), io.Discard),
	})
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), Name)
	return sink, err
}

func TestRun(t *testing.T) {
	server := newServer(t)

	sink, err := runScraper(t, "not a url\n"+server.URL+"/recipes/collection/easy-dinner/\n")
	require.NoError(t, err)

	got, ok := sink.Get("bbcgoodfood-easy-dinner.txt")
	require.True(t, ok, "outputs: %v", sink.Names())
	assert.Equal(t, server.URL+"/recipes/chicken-pie\nhttps://www.bbcgoodfood.com/recipes/beef-stew", got)
}

func TestRun_NoValidURL(t *testing.T) {
	sink, err := runScraper(t, "a\nb\nc\n")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidValue))
	assert.Empty(t, sink.Names())
}

func TestRun_URLWithoutPath(t *testing.T) {
	server := newServer(t)

	_, err := runScraper(t, server.URL+"\n")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidValue))
}
