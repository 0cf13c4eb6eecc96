package cart

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cartkv/cartkv/internal/catalog"
)

var (
	// ErrMalformedLine means a line entry is missing or its numeric fields do not parse
	ErrMalformedLine = errors.New("malformed line entry")
	// ErrLineNotFound means no line entry exists for the (cart, product) pair
	ErrLineNotFound = errors.New("line entry not found")
	// ErrCartNotFound means the cart has no paid flag stored
	ErrCartNotFound = errors.New("cart not found")
)

// LineEntry is the snapshot of a product taken when it was added to a cart.
// Later catalog changes never reach it.
type LineEntry struct {
	ProductID string `json:"id"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

// Subtotal is price times quantity
func (l LineEntry) Subtotal() int64 {
	return l.Price * l.Quantity
}

// MaxTotal is the answer of FindCartWithMaxTotal. CartID is nil when no cart
// has a positive total.
type MaxTotal struct {
	CartID *string `json:"cartId"`
	Total  int64   `json:"total"`
}

// ProductFrequency is the answer of GetMostFrequentProduct. ProductID is nil
// when no cart holds any product.
type ProductFrequency struct {
	ProductID *string `json:"productId"`
	Count     int     `json:"count"`
}

func lineFields(p catalog.Product) map[string][]byte {
	return map[string][]byte{
		fieldID:       []byte(p.ID),
		fieldTitle:    []byte(p.Title),
		fieldImage:    []byte(p.Image),
		fieldPrice:    []byte(strconv.FormatInt(p.Price, 10)),
		fieldQuantity: []byte(strconv.FormatInt(p.Quantity, 10)),
	}
}

func parseLine(key string, fields map[string][]byte) (LineEntry, error) {
	price, err := strconv.ParseInt(string(fields[fieldPrice]), 10, 64)
	if err != nil {
		return LineEntry{}, fmt.Errorf("%w: %s price: %v", ErrMalformedLine, key, err)
	}
	quantity, err := strconv.ParseInt(string(fields[fieldQuantity]), 10, 64)
	if err != nil {
		return LineEntry{}, fmt.Errorf("%w: %s quantity: %v", ErrMalformedLine, key, err)
	}

	return LineEntry{
		ProductID: string(fields[fieldID]),
		Title:     string(fields[fieldTitle]),
		Image:     string(fields[fieldImage]),
		Price:     price,
		Quantity:  quantity,
	}, nil
}
