package catalog

import (
	"errors"
	"fmt"
)

var ErrInvalidProduct = errors.New("invalid product")

// Product is a catalog item. Price is in the smallest currency unit and
// Quantity is the default quantity used when the product is added to a cart.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Image    string `json:"image"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

func (p Product) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidProduct)
	case p.Price < 0:
		return fmt.Errorf("%w: %s has negative price %d", ErrInvalidProduct, p.ID, p.Price)
	case p.Quantity < 1:
		return fmt.Errorf("%w: %s has quantity %d", ErrInvalidProduct, p.ID, p.Quantity)
	}
	return nil
}

// Demo returns the catalog the cartdemo command seeds carts from.
func Demo() []Product {
	return []Product{
		{
			ID:       "SKU001",
			Title:    "Apple MacBook Air M2 2024 8CPU 8GPU 16GB 256GB",
			Image:    "apple-mac-book-air-m2-2024-8-cpu-8-gpu-16-gb-256-gb.webp",
			Price:    21590000,
			Quantity: 1,
		},
		{
			ID:       "SKU002",
			Title:    "Mac mini M4 2024 10CPU 10GPU 24GB 512GB",
			Image:    "mac-mini-m4-2024-10-cpu-10-gpu-24-gb-512-gb.webp",
			Price:    24990000,
			Quantity: 1,
		},
		{
			ID:       "SKU003",
			Title:    "iPhone 16 Pro Max 256GB",
			Image:    "iphone-16-pro-max-256-gb.webp",
			Price:    30990000,
			Quantity: 1,
		},
		{
			ID:       "SKU004",
			Title:    "iPad Pro M4 11 inch Wifi 256GB",
			Image:    "ipad-pro-m4-11-inch-wifi-256-gb.webp",
			Price:    27990000,
			Quantity: 1,
		},
		{
			ID:       "SKU005",
			Title:    "Apple Watch Series 10 46mm (GPS) Viền Nhôm Dây Cao Su Size S/M",
			Image:    "apple-watch-series-10-46-mm-gps-vien-nhom-day-cao-su-size-s-m.webp",
			Price:    10990000,
			Quantity: 1,
		},
		{
			ID:       "SKU006",
			Title:    "Tai nghe Bluetooth Apple AirPods 4",
			Image:    "tai-nghe-bluetooth-apple-airpods-4.webp",
			Price:    3290000,
			Quantity: 1,
		},
		{
			ID:       "SKU007",
			Title:    "Apple AirTag",
			Image:    "apple-air-tag.webp",
			Price:    790000,
			Quantity: 2,
		},
	}
}
