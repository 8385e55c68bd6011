package domain

import (
	"strings"
	"unicode"
)

// Category es metadata orientativa inferida del texto de la pregunta.
type Category string

const (
	CategoryCrypto        Category = "crypto"
	CategorySports        Category = "sports"
	CategoryPolitics      Category = "politics"
	CategoryEconomy       Category = "economy"
	CategoryTech          Category = "tech"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

type categoryRule struct {
	category Category
	keywords []string
}

// categoryRules se evalúan en orden; gana la primera regla con keyword.
var categoryRules = []categoryRule{
	{CategoryCrypto, []string{"bitcoin", "btc", "ethereum", "eth", "ton", "toncoin", "crypto", "token", "solana", "usdt", "defi", "nft", "airdrop"}},
	{CategorySports, []string{"match", "game", "win the", "championship", "league", "cup", "nba", "nfl", "fifa", "goal", "olympic", "tournament", "ufc"}},
	{CategoryPolitics, []string{"election", "president", "senate", "vote", "parliament", "minister", "governor", "referendum", "party"}},
	{CategoryEconomy, []string{"inflation", "gdp", "fed", "interest rate", "recession", "unemployment", "stock", "s&p", "nasdaq", "oil"}},
	{CategoryTech, []string{"ai", "openai", "apple", "google", "launch", "release", "iphone", "spacex", "telegram"}},
	{CategoryEntertainment, []string{"movie", "film", "oscar", "album", "grammy", "box office", "series", "netflix"}},
}

// InferCategory compara la pregunta con categoryRules. Las keywords de una
// palabra deben coincidir entera; las frases, como substring.
func InferCategory(question string) Category {
	lower := strings.ToLower(question)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	}) {
		words[w] = true
	}

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(lower, kw) {
					return rule.category
				}
				continue
			}
			if words[kw] {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// ParseCategory convierte un valor guardado en Category (default: other).
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategoryCrypto, CategorySports, CategoryPolitics, CategoryEconomy, CategoryTech, CategoryEntertainment:
		return c
	}
	return CategoryOther
}
