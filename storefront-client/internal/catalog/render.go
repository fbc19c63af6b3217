package catalog

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const BuyLabel = "Купить"

// Card is one rendered gallery tile. Action carries the id the purchase
// trigger is bound to.
type Card struct {
	Action      int64
	Name        string
	Description string
	Price       string
}

// Gallery holds the cards currently on display.
type Gallery struct {
	cards []Card
}

// Replace discards the current cards and renders entries in their place.
func (g *Gallery) Replace(entries []Entry) {
	g.cards = Render(entries)
}

func (g *Gallery) Cards() []Card {
	return append([]Card(nil), g.cards...)
}

// IDs returns the entry ids bound to the cards, in display order.
func (g *Gallery) IDs() []int64 {
	ids := make([]int64, 0, len(g.cards))
	for _, c := range g.cards {
		ids = append(ids, c.Action)
	}
	return ids
}

func Render(entries []Entry) []Card {
	cards := make([]Card, 0, len(entries))
	for _, e := range entries {
		cards = append(cards, Card{
			Action:      e.ID,
			Name:        e.Name,
			Description: e.Description,
			Price:       FormatPrice(e.Price),
		})
	}
	return cards
}

// FormatPrice groups digits the Russian way, e.g. "2 990 руб.".
func FormatPrice(price int64) string {
	p := message.NewPrinter(language.Russian)
	return p.Sprintf("%d руб.", price)
}

// WriteText writes the cards as a plain-text listing.
func WriteText(w io.Writer, cards []Card) error {
	if len(cards) == 0 {
		_, err := fmt.Fprintln(w, "Ничего не найдено")
		return err
	}

	for _, c := range cards {
		_, err := fmt.Fprintf(w, "[%d] %s\n    %s\n    %s  (%s: buy %d)\n%s\n",
			c.Action, c.Name, c.Description, c.Price, BuyLabel, c.Action, strings.Repeat("─", 40))
		if err != nil {
			return err
		}
	}
	return nil
}
