// Package bbcgoodfood collects recipe links from a BBC Good Food collection page.
package bbcgoodfood

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/recipescrape/recipescrape/internal/scraper"
	"github.com/recipescrape/recipescrape/internal/webpage"
	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// Name is the registry name and output prefix.
const Name = "bbcgoodfood"

// urlAttempts is how many times the operator is asked for a page URL.
const urlAttempts = 3

var titleID = regexp.MustCompile(`[0-9]+`)

// Scraper asks for a collection URL and writes the recipe links found on it.
type Scraper struct{}

// New returns the BBC Good Food scraper.
func New() *Scraper {
	return &Scraper{}
}

func (s *Scraper) Name() string {
	return Name
}

func (s *Scraper) Run(ctx context.Context, env *scraper.Env) error {
	if env.Prompt == nil {
		return errors.NewError(errors.ErrCodeInvalidConfig, "bbcgoodfood needs an interactive prompt").
			WithComponent(Name)
	}
	pageURL, err := env.Prompt.URL("Enter a BBC Good Food URL: ", urlAttempts)
	if err != nil {
		return err
	}

	segment := utils.LastPathSegment(pageURL)
	if segment == "" {
		return errors.NewError(errors.ErrCodeInvalidValue, "URL has no path to name the output after").
			WithComponent(Name).
			WithContext("url", pageURL)
	}

	env.Logger.Info("Fetching recipes", map[string]interface{}{"url": pageURL})
	urls, err := RecipeURLs(ctx, env.Fetcher, pageURL)
	if err != nil {
		return err
	}
	env.Logger.Debug("Found recipes", map[string]interface{}{"count": len(urls)})

	env.AddItems(len(urls))
	return env.Output.Write(ctx, utils.SanitizeFilename(segment)+".txt", []byte(strings.Join(urls, "\n")))
}

// RecipeURLs fetches pageURL and returns the recipe links in page order.
// A recipe title is an <h3> whose id contains a digit; its first link is the recipe.
func RecipeURLs(ctx context.Context, fetcher scraper.Fetcher, pageURL string) ([]string, error) {
	doc, err := fetcher.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	titles := webpage.FindAll(doc, func(n *html.Node) bool {
		if !webpage.IsElement(n, "h3") {
			return false
		}
		id, ok := webpage.Attr(n, "id")
		return ok && titleID.MatchString(id)
	})

	seen := make(map[string]bool)
	var urls []string
	for _, title := range titles {
		a := webpage.FindFirst(title, webpage.Tag("a"))
		href, ok := webpage.Attr(a, "href")
		if !ok {
			continue
		}
		recipeURL, err := webpage.Resolve(pageURL, href)
		if err != nil || seen[recipeURL] {
			continue
		}
		seen[recipeURL] = true
		urls = append(urls, recipeURL)
	}
	return urls, nil
}
