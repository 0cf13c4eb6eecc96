package api

import (
	"context"

	"github.com/cartkv/cartkv/internal/cart"
	"github.com/cartkv/cartkv/internal/catalog"
)

// CartService is the part of cart.Accessor the HTTP layer needs
type CartService interface {
	Ping(ctx context.Context) error
	CreateCart(ctx context.Context, userID string, products []catalog.Product) error
	GetAllCartIDs(ctx context.Context) ([]string, error)
	FindUnpaidCarts(ctx context.Context) ([]string, error)
	CartsWithMoreThanFiveItems(ctx context.Context) ([]string, error)
	CountCartsWithProduct(ctx context.Context, productID string) (int, error)
	CalculateCartTotal(ctx context.Context, cartID string) (int64, error)
	GetCartsByUser(ctx context.Context, userID string) ([]string, error)
	RemoveProduct(ctx context.Context, cartID, productID string) error
	IncrementProduct(ctx context.Context, cartID, productID string) error
	ClearCart(ctx context.Context, cartID string) error
	FindCartWithMaxTotal(ctx context.Context) (cart.MaxTotal, error)
	GetMostFrequentProduct(ctx context.Context) (cart.ProductFrequency, error)
	GetLineEntry(ctx context.Context, cartID, productID string) (cart.LineEntry, error)
	IsPaid(ctx context.Context, cartID string) (bool, error)
	MarkPaid(ctx context.Context, cartID string, paid bool) error
}

var _ CartService = (*cart.Accessor)(nil)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

type CartIDsResponse struct {
	CartIDs []string `json:"cartIds"`
}

type CartCreatedResponse struct {
	CartID string `json:"cartId"`
}

type CartTotalResponse struct {
	CartID string `json:"cartId"`
	Total  int64  `json:"total"`
}

type ProductCountResponse struct {
	ProductID string `json:"productId"`
	Count     int    `json:"count"`
}

type PaidRequest struct {
	Paid *bool `json:"paid"`
}

type PaidResponse struct {
	CartID string `json:"cartId"`
	Paid   bool   `json:"paid"`
}
