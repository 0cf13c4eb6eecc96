package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cartkv/cartkv/internal/cart"
	"github.com/cartkv/cartkv/internal/catalog"
	"github.com/cartkv/cartkv/internal/config"
	"github.com/cartkv/cartkv/internal/log"
	"github.com/cartkv/cartkv/pkg/kv"
	_ "github.com/cartkv/cartkv/pkg/kv/memory"
	_ "github.com/cartkv/cartkv/pkg/kv/redis"
	"go.uber.org/zap"
)

const demoCart = "cart:ncdai-1"

var (
	flags     = flag.NewFlagSet("cartdemo", flag.ExitOnError)
	remove    = flags.String("remove", "", "product id to remove from "+demoCart+" before the reports")
	increment = flags.String("increment", "", "product id whose quantity is bumped in "+demoCart+" before the reports")
	clearCart = flags.Bool("clear", false, "clear "+demoCart+" before the reports")
)

type mutations struct {
	remove    string
	increment string
	clear     bool
}

func main() {
	flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Log("cartdemo"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := kv.NewStoreFromConfig(cfg.KV())
	if err != nil {
		logger.Fatalw("Failed to connect store", "backend", cfg.Store.Backend, "error", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accessor := cart.New(store, cart.WithLogger(logger))
	opts := mutations{remove: *remove, increment: *increment, clear: *clearCart}
	if err := run(ctx, accessor, opts, logger); err != nil {
		logger.Fatalw("Demo failed", "error", err)
	}
}

// run seeds two carts from the demo catalog, applies the requested
// mutations to the first one and logs every report.
func run(ctx context.Context, accessor *cart.Accessor, opts mutations, logger *zap.SugaredLogger) error {
	products := catalog.Demo()
	if err := accessor.CreateCart(ctx, "ncdai-1", products); err != nil {
		return fmt.Errorf("create ncdai-1: %w", err)
	}
	if err := accessor.CreateCart(ctx, "ncdai-2", products[:3]); err != nil {
		return fmt.Errorf("create ncdai-2: %w", err)
	}

	unpaid, err := accessor.FindUnpaidCarts(ctx)
	if err != nil {
		return err
	}
	logger.Infow("findUnpaidCarts", "carts", unpaid)

	large, err := accessor.CartsWithMoreThanFiveItems(ctx)
	if err != nil {
		return err
	}
	logger.Infow("cartsWithMoreThanFiveItems", "carts", large)

	count, err := accessor.CountCartsWithProduct(ctx, "SKU002")
	if err != nil {
		return err
	}
	logger.Infow("countCartsWithProduct", "productId", "SKU002", "count", count)

	total, err := accessor.CalculateCartTotal(ctx, demoCart)
	if err != nil {
		return err
	}
	logger.Infow("calculateCartTotal", "cartId", demoCart, "total", total)

	byUser, err := accessor.GetCartsByUser(ctx, "ncdai")
	if err != nil {
		return err
	}
	logger.Infow("getCartsByUser", "userId", "ncdai", "carts", byUser)

	if opts.remove != "" {
		if err := accessor.RemoveProduct(ctx, demoCart, opts.remove); err != nil {
			return fmt.Errorf("remove %s: %w", opts.remove, err)
		}
		logger.Infow("removeProduct", "cartId", demoCart, "productId", opts.remove)
	}
	if opts.increment != "" {
		if err := accessor.IncrementProduct(ctx, demoCart, opts.increment); err != nil {
			return fmt.Errorf("increment %s: %w", opts.increment, err)
		}
		logger.Infow("incrementProduct", "cartId", demoCart, "productId", opts.increment)
	}
	if opts.clear {
		if err := accessor.ClearCart(ctx, demoCart); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		logger.Infow("clearCart", "cartId", demoCart)
	}

	maxTotal, err := accessor.FindCartWithMaxTotal(ctx)
	if err != nil {
		return err
	}
	logger.Infow("findCartWithMaxTotal", "cartId", maxTotal.CartID, "total", maxTotal.Total)

	top, err := accessor.GetMostFrequentProduct(ctx)
	if err != nil {
		return err
	}
	logger.Infow("getMostFrequentProduct", "productId", top.ProductID, "count", top.Count)

	return nil
}
