package mealie

import (
	"context"
	"fmt"
	"net/url"

	"github.com/recipescrape/recipescrape/internal/scraper"
	"github.com/recipescrape/recipescrape/internal/webpage"
)

// Food is a Mealie food entity.
type Food struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Note string `json:"note"`
	Food *Food  `json:"food"`
}

// ParsedIngredient is one result of the ingredient parser.
type ParsedIngredient struct {
	Input      string `json:"input"`
	Ingredient *struct {
		Food *Food `json:"food"`
	} `json:"ingredient"`
	Confidence struct {
		Food *float64 `json:"food"`
	} `json:"confidence"`
}

type page[T any] struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	Items      []T `json:"items"`
}

type recipeSummary struct {
	Slug string `json:"slug"`
}

type recipeDetail struct {
	RecipeIngredient []Ingredient `json:"recipeIngredient"`
}

type parseRequest struct {
	Parser      string   `json:"parser"`
	Ingredients []string `json:"ingredients"`
}

// Client talks to the Mealie REST API.
type Client struct {
	fetcher scraper.Fetcher
	baseURL string
	token   string
	perPage int
}

// NewClient creates an API client for the instance at baseURL.
func NewClient(fetcher scraper.Fetcher, baseURL, token string, perPage int) *Client {
	if perPage <= 0 {
		perPage = 25
	}
	return &Client{fetcher: fetcher, baseURL: baseURL, token: token, perPage: perPage}
}

func (c *Client) endpoint(path string) (string, error) {
	return webpage.Resolve(c.baseURL, path)
}

// paginate fetches every page of a paginated listing.
func paginate[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var items []T
	for p := 1; ; p++ {
		u, err := c.endpoint(fmt.Sprintf("%s?perPage=%d&page=%d", path, c.perPage, p))
		if err != nil {
			return nil, err
		}
		var resp page[T]
		if err := c.fetcher.GetJSON(ctx, u, c.token, &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Items...)
		if resp.Page >= resp.TotalPages || len(resp.Items) == 0 {
			return items, nil
		}
	}
}

// RecipeSlugs lists the slug of every recipe.
func (c *Client) RecipeSlugs(ctx context.Context) ([]string, error) {
	recipes, err := paginate[recipeSummary](ctx, c, "/api/recipes")
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(recipes))
	for _, r := range recipes {
		slugs = append(slugs, r.Slug)
	}
	return slugs, nil
}

// Ingredients returns the ingredient list of one recipe.
func (c *Client) Ingredients(ctx context.Context, slug string) ([]Ingredient, error) {
	u, err := c.endpoint("/api/recipes/" + url.PathEscape(slug))
	if err != nil {
		return nil, err
	}
	var detail recipeDetail
	if err := c.fetcher.GetJSON(ctx, u, c.token, &detail); err != nil {
		return nil, err
	}
	return detail.RecipeIngredient, nil
}

// Parse runs the NLP ingredient parser over notes.
func (c *Client) Parse(ctx context.Context, notes []string) ([]ParsedIngredient, error) {
	u, err := c.endpoint("/api/parser/ingredients")
	if err != nil {
		return nil, err
	}
	var parsed []ParsedIngredient
	err = c.fetcher.PostJSON(ctx, u, c.token, parseRequest{Parser: "nlp", Ingredients: notes}, &parsed)
	return parsed, err
}

// FoodNames lists the names of every existing food.
func (c *Client) FoodNames(ctx context.Context) ([]string, error) {
	foods, err := paginate[Food](ctx, c, "/api/foods")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(foods))
	for _, f := range foods {
		names = append(names, f.Name)
	}
	return names, nil
}

// CreateFood creates a food called name.
func (c *Client) CreateFood(ctx context.Context, name string) error {
	u, err := c.endpoint("/api/foods")
	if err != nil {
		return err
	}
	return c.fetcher.PostJSON(ctx, u, c.token, Food{Name: name}, nil)
}
