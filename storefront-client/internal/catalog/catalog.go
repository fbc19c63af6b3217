// Package catalog holds the template catalog shown by the storefront client:
// the entries themselves, the search filter and the gallery renderer.
package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

type Entry struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Price is in whole roubles.
	Price    int64  `json:"price"`
	Category string `json:"category"`
}

var builtin = []Entry{
	{ID: 1, Name: "Бизнес Портфолио", Description: "Современный шаблон для презентации вашего бизнеса", Price: 2990, Category: "бизнес"},
	{ID: 2, Name: "Интернет-магазин", Description: "Полнофункциональный шаблон для электронной коммерции", Price: 4990, Category: "магазин"},
	{ID: 3, Name: "Корпоративный сайт", Description: "Профессиональный шаблон для корпоративных клиентов", Price: 3990, Category: "корпоративный"},
	{ID: 4, Name: "Блог Платформа", Description: "Элегантный шаблон для ведения блога", Price: 2490, Category: "блог"},
	{ID: 5, Name: "Лендинг Пейдж", Description: "Высококонверсионный лендинг для вашего продукта", Price: 1990, Category: "лендинг"},
	{ID: 6, Name: "Портфолио Фрилансера", Description: "Креативный шаблон для демонстрации работ", Price: 2790, Category: "портфолио"},
}

// Builtin returns a copy of the catalog compiled into the client.
func Builtin() []Entry {
	return append([]Entry(nil), builtin...)
}

// Catalog is an immutable, ordered set of entries.
type Catalog struct {
	entries []Entry
}

func New(entries []Entry) *Catalog {
	return &Catalog{entries: append([]Entry(nil), entries...)}
}

func (c *Catalog) All() []Entry {
	return append([]Entry(nil), c.entries...)
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// Find looks an entry up by id.
func (c *Catalog) Find(id int64) (Entry, bool) {
	for _, e := range c.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func (c *Catalog) Filter(query string) []Entry {
	return Filter(c.entries, query)
}

// Filter returns, in catalog order, the entries whose name, description or
// category contain query ignoring case. An empty query matches everything.
func Filter(entries []Entry, query string) []Entry {
	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if needle == "" ||
			strings.Contains(fold.String(e.Name), needle) ||
			strings.Contains(fold.String(e.Description), needle) ||
			strings.Contains(fold.String(e.Category), needle) {
			out = append(out, e)
		}
	}
	return out
}
