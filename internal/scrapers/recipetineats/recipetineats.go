// Package recipetineats crawls every RecipeTin Eats category and writes one
// recipe list per category.
package recipetineats

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/recipescrape/recipescrape/internal/scraper"
	"github.com/recipescrape/recipescrape/internal/webpage"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// Name is the registry name and output prefix.
const Name = "recipetineats"

// DefaultBaseURL is the site root the category links are collected from.
const DefaultBaseURL = "https://www.recipetineats.com/"

// Scraper crawls the category pages of the site.
type Scraper struct{}

// New returns the RecipeTin Eats scraper.
func New() *Scraper {
	return &Scraper{}
}

func (s *Scraper) Name() string {
	return Name
}

func (s *Scraper) Run(ctx context.Context, env *scraper.Env) error {
	baseURL := DefaultBaseURL
	workers := runtime.NumCPU()
	if env.Config != nil {
		if u := env.Config.Scrapers.RecipeTinEats.BaseURL; u != "" {
			baseURL = u
		}
		if n := env.Config.Scrapers.RecipeTinEats.Workers; n > 0 {
			workers = n
		}
	}

	env.Logger.Info("Fetching categories", map[string]interface{}{"url": baseURL})
	categories, err := Categories(ctx, env.Fetcher, baseURL)
	if err != nil {
		return err
	}
	env.Logger.Info("Found categories", map[string]interface{}{"count": len(categories)})

	env.Logger.Info("Fetching recipes", map[string]interface{}{"workers": workers})
	recipes := make([][]string, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, category := range categories {
		i, category := i, category
		g.Go(func() error {
			logger := env.Logger.WithFields(map[string]interface{}{"worker": i, "url": category})
			logger.Debug("Fetching recipes")

			urls, err := RecipeURLs(gctx, env.Fetcher, category)
			if err != nil {
				// One broken category does not stop the crawl
				logger.Warn("Failed to fetch category", map[string]interface{}{"error": err.Error()})
				return nil
			}
			if urls == nil {
				logger.Warn("No recipes found")
			} else {
				logger.Debug("Found recipes", map[string]interface{}{"count": len(urls)})
			}
			recipes[i] = urls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, category := range categories {
		if len(recipes[i]) == 0 {
			continue
		}
		name := utils.SanitizeFilename(utils.LastPathSegment(category)) + ".txt"
		if err := env.Output.Write(ctx, name, []byte(strings.Join(recipes[i], "\n"))); err != nil {
			return err
		}
		env.AddItems(len(recipes[i]))
	}
	return nil
}

// Categories returns the distinct category links on the page at baseURL: links
// under baseURL with a "category" path segment, in page order.
func Categories(ctx context.Context, fetcher scraper.Fetcher, baseURL string) ([]string, error) {
	doc, err := fetcher.GetDocument(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var categories []string
	for _, a := range webpage.FindAll(doc, webpage.Tag("a")) {
		href, ok := webpage.Attr(a, "href")
		if !ok || !strings.HasPrefix(href, baseURL) || seen[href] {
			continue
		}
		if !isCategory(href) {
			continue
		}
		seen[href] = true
		categories = append(categories, href)
	}
	return categories, nil
}

func isCategory(href string) bool {
	parts, err := utils.URLPathParts(href)
	if err != nil {
		return false
	}
	for _, p := range parts {
		if p == "category" {
			return true
		}
	}
	return false
}

// RecipeURLs returns the distinct recipe links of one category page. It
// returns nil when the page has no <article> elements.
func RecipeURLs(ctx context.Context, fetcher scraper.Fetcher, categoryURL string) ([]string, error) {
	doc, err := fetcher.GetDocument(ctx, categoryURL)
	if err != nil {
		return nil, err
	}

	articles := webpage.FindAll(doc, webpage.Tag("article"))
	if len(articles) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	urls := []string{}
	for _, article := range articles {
		link := webpage.FindFirst(article, func(n *html.Node) bool {
			return webpage.IsElement(n, "a") && webpage.HasClass(n, "entry-title-link")
		})
		href, ok := webpage.Attr(link, "href")
		if !ok || seen[href] {
			continue
		}
		seen[href] = true
		urls = append(urls, href)
	}
	return urls, nil
}
