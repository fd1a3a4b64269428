// Package mealie builds the food list of a Mealie instance from the foods its
// ingredient parser recognises in existing recipes.
package mealie

import (
	"context"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recipescrape/recipescrape/internal/cache"
	"github.com/recipescrape/recipescrape/internal/scraper"
	"github.com/recipescrape/recipescrape/pkg/errors"
)

// Name is the registry name and cache namespace.
const Name = "mealie"

// Cache keys and lifetime of the fetched recipe data.
const (
	keyRecipeIDs   = "recipe_ids"
	keyIngredients = "ingredients"
	cacheTTL       = 5 * cache.Minute
)

// DefaultConfidence is the parser confidence above which a food is accepted.
const DefaultConfidence = 0.85

// Check is a parsed food that needs a human to confirm it.
type Check struct {
	Food         string `json:"food"`
	OriginalText string `json:"original_text"`
}

// Scraper is the Mealie food builder.
type Scraper struct{}

// New returns the Mealie food builder.
func New() *Scraper {
	return &Scraper{}
}

func (s *Scraper) Name() string {
	return Name
}

func (s *Scraper) Run(ctx context.Context, env *scraper.Env) error {
	baseURL, token, err := settings(env)
	if err != nil {
		return err
	}

	cfg := env.Config.Mealie
	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidence
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	client := NewClient(env.Fetcher, baseURL, token, cfg.PerPage)

	slugs, err := recipeSlugs(ctx, env, client)
	if err != nil {
		return err
	}
	env.Logger.Debug("Found recipes", map[string]interface{}{"count": len(slugs)})

	ingredients, err := recipeIngredients(ctx, env, client, slugs, workers)
	if err != nil {
		return err
	}

	foods, needsChecking, err := parseFoods(ctx, env, client, ingredients, threshold, workers)
	if err != nil {
		return err
	}
	env.Logger.Info("Found foods", map[string]interface{}{"count": len(foods)})

	needsChecking = FilterChecks(needsChecking)
	env.Logger.Info("Needs checking", map[string]interface{}{"count": len(needsChecking)})

	if len(needsChecking) > 0 {
		reviewed, err := review(env, needsChecking)
		if err != nil {
			return err
		}
		foods = append(foods, reviewed...)
	}

	existing, err := client.FoodNames(ctx)
	if err != nil {
		return err
	}
	newFoods := Subtract(Dedupe(foods), existing)

	env.Logger.Info("Creating new foods", map[string]interface{}{"count": len(newFoods)})
	if len(newFoods) == 0 {
		return nil
	}
	create, err := confirm(env, "Would you like to create these foods (y/n)? ")
	if err != nil {
		return err
	}
	if !create {
		env.Logger.Info("Exiting without creating foods")
		return nil
	}

	for _, food := range newFoods {
		if err := client.CreateFood(ctx, food); err != nil {
			return err
		}
		env.AddItems(1)
	}
	env.Logger.Info("Finished")
	return nil
}

// settings resolves the instance URL and token. The environment has already
// been merged into the configuration; anything still missing is prompted for
// and saved back to the configuration file.
func settings(env *scraper.Env) (string, string, error) {
	cfg := &env.Config.Mealie
	prompted := false

	if cfg.APIToken == "" {
		if env.Prompt == nil {
			return "", "", errors.NewError(errors.ErrCodeCredentialsMissing, "Mealie API token is not configured").
				WithComponent(Name)
		}
		token, err := env.Prompt.String("Enter your Mealie API Token: ")
		if err != nil {
			return "", "", err
		}
		cfg.APIToken = token
		prompted = true
	}
	if cfg.URL == "" {
		if env.Prompt == nil {
			return "", "", errors.NewError(errors.ErrCodeInvalidConfig, "Mealie URL is not configured").
				WithComponent(Name)
		}
		u, err := env.Prompt.URL("Enter your Mealie URL: ", 3)
		if err != nil {
			return "", "", err
		}
		cfg.URL = u
		prompted = true
	}

	if prompted {
		if err := env.SaveConfig(); err != nil {
			env.Logger.Warn("Failed to save Mealie settings", map[string]interface{}{"error": err.Error()})
		}
	}
	return cfg.URL, cfg.APIToken, nil
}

func recipeSlugs(ctx context.Context, env *scraper.Env, client *Client) ([]string, error) {
	slugs, ok, err := cache.Lookup[[]string](env.Cache, keyRecipeIDs)
	if err == nil && ok {
		return slugs, nil
	}

	slugs, err = client.RecipeSlugs(ctx)
	if err != nil {
		return nil, err
	}
	if err := env.Cache.Set(keyRecipeIDs, slugs, cacheTTL); err != nil {
		return nil, err
	}
	flush(env)
	return slugs, nil
}

func recipeIngredients(ctx context.Context, env *scraper.Env, client *Client, slugs []string, workers int) ([][]Ingredient, error) {
	ingredients, ok, err := cache.Lookup[[][]Ingredient](env.Cache, keyIngredients)
	if err == nil && ok {
		return ingredients, nil
	}

	env.Logger.Info("Fetching ingredients", map[string]interface{}{"recipes": len(slugs)})
	ingredients = make([][]Ingredient, len(slugs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, slug := range slugs {
		i, slug := i, slug
		g.Go(func() error {
			list, err := client.Ingredients(gctx, slug)
			if err != nil {
				return err
			}
			ingredients[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := env.Cache.Set(keyIngredients, ingredients, cacheTTL); err != nil {
		return nil, err
	}
	flush(env)
	return ingredients, nil
}

// flush persists fetched data early so a later failure does not lose it.
// A failure here is reported again by the runner's final flush.
func flush(env *scraper.Env) {
	if err := env.Flush(); err != nil {
		env.Logger.Warn("Cache flush failed", map[string]interface{}{"error": err.Error()})
	}
}

// parseFoods sends the food-less ingredients of every recipe to the parser.
// Results keep recipe order regardless of which worker finishes first.
func parseFoods(ctx context.Context, env *scraper.Env, client *Client, recipes [][]Ingredient, threshold float64, workers int) ([]string, []Check, error) {
	accepted := make([][]string, len(recipes))
	checks := make([][]Check, len(recipes))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ingredients := range recipes {
		i, ingredients := i, ingredients
		g.Go(func() error {
			notes := UnmatchedNotes(ingredients)
			if len(notes) == 0 {
				return nil
			}
			parsed, err := client.Parse(gctx, notes)
			if err != nil {
				return err
			}
			accepted[i], checks[i] = Classify(notes, parsed, threshold)
			env.Logger.Debug("Parsed ingredients", map[string]interface{}{
				"worker": i,
				"foods":  len(accepted[i]),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	env.Logger.Debug("Parsed all recipes", map[string]interface{}{"duration": time.Since(start).String()})

	var foods []string
	var needsChecking []Check
	for i := range recipes {
		foods = append(foods, accepted[i]...)
		needsChecking = append(needsChecking, checks[i]...)
	}
	return Dedupe(foods), needsChecking, nil
}

// UnmatchedNotes returns the notes of ingredients with no linked food.
func UnmatchedNotes(ingredients []Ingredient) []string {
	var notes []string
	for _, ing := range ingredients {
		if ing.Food == nil {
			notes = append(notes, ing.Note)
		}
	}
	return notes
}

// Classify splits parser results into accepted food names and foods that need
// checking. A food is accepted when its confidence is strictly above threshold.
// Results without a food are dropped.
func Classify(notes []string, parsed []ParsedIngredient, threshold float64) ([]string, []Check) {
	var foods []string
	var checks []Check
	for i, p := range parsed {
		if p.Ingredient == nil || p.Ingredient.Food == nil {
			continue
		}
		name := p.Ingredient.Food.Name
		if conf := p.Confidence.Food; conf != nil && *conf > threshold {
			foods = append(foods, name)
			continue
		}
		text := p.Input
		if i < len(notes) {
			text = notes[i]
		}
		checks = append(checks, Check{Food: name, OriginalText: text})
	}
	return foods, checks
}

// FilterChecks drops checks with empty text, a repeated text or a repeated food,
// keeping the first occurrence.
func FilterChecks(checks []Check) []Check {
	seenText := make(map[string]bool)
	seenFood := make(map[string]bool)
	var out []Check
	for _, c := range checks {
		if c.OriginalText == "" || seenText[c.OriginalText] || seenFood[c.Food] {
			continue
		}
		seenText[c.OriginalText] = true
		seenFood[c.Food] = true
		out = append(out, c)
	}
	return out
}

// Dedupe returns the distinct non-empty names in sorted order.
func Dedupe(names []string) []string {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = true
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Subtract returns the names not in existing, preserving order.
func Subtract(names, existing []string) []string {
	skip := make(map[string]bool, len(existing))
	for _, n := range existing {
		skip[n] = true
	}
	var out []string
	for _, n := range names {
		if !skip[n] {
			out = append(out, n)
		}
	}
	return out
}

func review(env *scraper.Env, checks []Check) ([]string, error) {
	ok, err := confirm(env, "Would you like to check the foods that need checking (y/n)? ")
	if err != nil || !ok {
		return nil, err
	}

	var foods []string
	for _, c := range checks {
		env.Prompt.Println("Original Text: " + c.OriginalText)
		env.Prompt.Println("Food: " + c.Food)
		env.Prompt.Println()

		correct, err := env.Prompt.YesNo("Is this correct? (y/n) ", false)
		if err != nil {
			return nil, err
		}
		if correct {
			foods = append(foods, c.Food)
			continue
		}
		food, err := env.Prompt.String("Enter the correct food: ")
		if err != nil {
			return nil, err
		}
		foods = append(foods, food)
	}
	return foods, nil
}

// confirm asks a yes/no question defaulting to no. Without a prompt the answer is no.
func confirm(env *scraper.Env, question string) (bool, error) {
	if env.Prompt == nil {
		return false, nil
	}
	return env.Prompt.YesNo(question, false)
}
