package recipetineats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipescrape/recipescrape/internal/cache"
	"github.com/recipescrape/recipescrape/internal/config"
	"github.com/recipescrape/recipescrape/internal/output"
	"github.com/recipescrape/recipescrape/internal/scraper"
	"github.com/recipescrape/recipescrape/internal/webpage"
	"github.com/recipescrape/recipescrape/pkg/retry"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := server.URL
		switch r.URL.Path {
		case "/":
			fmt.Fprintf(w, `<html><body><nav>
				<a href="%[1]s/category/chicken-recipes/">Chicken</a>
				<a href="%[1]s/category/beef/">Beef</a>
				<a href="%[1]s/category/chicken-recipes/">Chicken again</a>
				<a href="%[1]s/category/empty/">Empty</a>
				<a href="%[1]s/category/broken/">Broken</a>
				<a href="%[1]s/about/">About</a>
				<a href="https://elsewhere.example.com/category/x/">Offsite</a>
				<a>No href</a>
			</nav></body></html>`, base)
		case "/category/chicken-recipes/":
			fmt.Fprintf(w, `<article><h2><a class="entry-title-link" href="%[1]s/butter-chicken/">Butter chicken</a></h2></article>
				<article><a class="entry-title-link" href="%[1]s/chicken-pie/">Pie</a></article>
				<article><a class="entry-title-link" href="%[1]s/butter-chicken/">Dup</a></article>
				<article><a href="%[1]s/no-class/">No class</a></article>`, base)
		case "/category/beef/":
			fmt.Fprintf(w, `<article><a class="entry-title-link" href="%s/beef-stew/">Stew</a></article>`, base)
		case "/category/empty/":
			_, _ = io.WriteString(w, `<p>Nothing here</p>`)
		default:
			http.Error(w, "boom", http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newFetcher() *webpage.Client {
	cfg := webpage.DefaultConfig()
	cfg.Retry = retry.Config{MaxAttempts: 1}
	cfg.CircuitBreaker = nil
	return webpage.NewClient(cfg)
}

func TestCategories(t *testing.T) {
	server := newSite(t)

	got, err := Categories(context.Background(), newFetcher(), server.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		server.URL + "/category/chicken-recipes/",
		server.URL + "/category/beef/",
		server.URL + "/category/empty/",
		server.URL + "/category/broken/",
	}, got)
}

func TestRecipeURLs(t *testing.T) {
	server := newSite(t)
	fetcher := newFetcher()

	got, err := RecipeURLs(context.Background(), fetcher, server.URL+"/category/chicken-recipes/")
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/butter-chicken/", server.URL + "/chicken-pie/"}, got)

	got, err = RecipeURLs(context.Background(), fetcher, server.URL+"/category/empty/")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRun(t *testing.T) {
	server := newSite(t)

	store, err := cache.New(&cache.Config{Path: filepath.Join(t.TempDir(), "cache.json"), SweepInterval: time.Hour})
	require.NoError(t, err)
	defer store.Close()

	cfg := config.NewDefault()
	cfg.Scrapers.RecipeTinEats.BaseURL = server.URL + "/"
	cfg.Scrapers.RecipeTinEats.Workers = 2

	sink := output.NewMemorySink()
	runner, err := scraper.NewRunner(scraper.RunnerConfig{
		Registry: scraper.NewRegistry(New()),
		Store:    store,
		Fetcher:  newFetcher(),
		Output:   sink,
		Config:   cfg,
	})
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), Name)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Items)

	assert.Equal(t, []string{"recipetineats-beef.txt", "recipetineats-chicken-recipes.txt"}, sink.Names())
	got, _ := sink.Get("recipetineats-chicken-recipes.txt")
	assert.Equal(t, server.URL+"/butter-chicken/\n"+server.URL+"/chicken-pie/", got)
	got, _ = sink.Get("recipetineats-beef.txt")
	assert.Equal(t, server.URL+"/beef-stew/", got)
}
