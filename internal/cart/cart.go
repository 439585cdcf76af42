// Package cart models the shopping cart held by the browser until checkout.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
)

var (
	ErrItemNotFound = errors.New("cart item not found")
	ErrCartFull     = fmt.Errorf("cart holds at most %d products", MaxItems)
)

const (
	MaxItems      = 200
	MaxNoteLength = 500
)

// Item is one cart line with the product snapshot taken when it was added.
type Item struct {
	ProductID primitive.ObjectID `json:"productId"`
	SKU       string             `json:"sku"`
	Name      string             `json:"name"`
	Specs     string             `json:"specs,omitempty"`
	ImageURL  string             `json:"imageUrl,omitempty"`
	MOQ       int                `json:"moq"`
	Quantity  int                `json:"quantity"`
	Note      string             `json:"note,omitempty"`
}

// Cart keeps lines in insertion order, one per product.
type Cart struct {
	Items []Item `json:"items"`
}

func New() *Cart {
	return &Cart{Items: []Item{}}
}

func SnapshotOf(p models.Product) Item {
	return Item{
		ProductID: p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Specs:     p.Specs,
		ImageURL:  p.ImageURL,
		MOQ:       p.MOQ(),
	}
}

func (c *Cart) index(productID primitive.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add merges quantity into an existing line for the product or appends a new
// one. A non-positive quantity adds the product's MOQ. MOQ is not enforced
// here; Validate reports shortfalls.
func (c *Cart) Add(p models.Product, quantity int) (Item, error) {
	if quantity <= 0 {
		quantity = p.MOQ()
	}
	if i := c.index(p.ID); i >= 0 {
		c.Items[i].Quantity += quantity
		return c.Items[i], nil
	}
	if len(c.Items) >= MaxItems {
		return Item{}, ErrCartFull
	}
	item := SnapshotOf(p)
	item.Quantity = quantity
	c.Items = append(c.Items, item)
	return item, nil
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (c *Cart) UpdateQuantity(productID primitive.ObjectID, quantity int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (c *Cart) UpdateNote(productID primitive.ObjectID, note string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		note = string([]rune(note)[:MaxNoteLength])
	}
	c.Items[i].Note = note
	return nil
}

func (c *Cart) Remove(productID primitive.ObjectID) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.Items = []Item{}
}

func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Shortfall is a line whose quantity is below the product MOQ.
type Shortfall struct {
	ProductID primitive.ObjectID `json:"productId"`
	SKU       string             `json:"sku"`
	Name      string             `json:"name"`
	MOQ       int                `json:"moq"`
	Quantity  int                `json:"quantity"`
}

// Validate lists lines below their snapshot MOQ.
func (c *Cart) Validate() []Shortfall {
	var out []Shortfall
	for _, item := range c.Items {
		moq := item.MOQ
		if moq < 1 {
			moq = 1
		}
		if item.Quantity < moq {
			out = append(out, Shortfall{
				ProductID: item.ProductID,
				SKU:       item.SKU,
				Name:      item.Name,
				MOQ:       moq,
				Quantity:  item.Quantity,
			})
		}
	}
	return out
}
