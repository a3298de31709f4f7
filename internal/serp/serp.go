package serp

import "strings"

// Placeholder marks where the keyword goes in an Engine's URLTemplate.
const Placeholder = "{query}"

// Engine describes a search engine whose HTML result page can be scraped
// for outbound links.
type Engine struct {
	Name        string
	URLTemplate string
}

// Defaults returns the engines queried for every keyword, in query order.
func Defaults() []Engine {
	return []Engine{
		{Name: "Google", URLTemplate: "https://www.google.com/search?q=sims+4+" + Placeholder + "+mod"},
		{Name: "DuckDuckGo", URLTemplate: "https://duckduckgo.com/html?q=sims+4+" + Placeholder + "+mod"},
	}
}

// QueryURL substitutes keyword into the template. Spaces become '+';
// nothing else is escaped.
func (e Engine) QueryURL(keyword string) string {
	return strings.ReplaceAll(e.URLTemplate, Placeholder, strings.ReplaceAll(keyword, " ", "+"))
}
