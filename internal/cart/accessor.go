package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cartkv/cartkv/internal/catalog"
	"github.com/cartkv/cartkv/internal/metrics"
	"github.com/cartkv/cartkv/pkg/kv"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LargeCartThreshold is the item count a cart must exceed to be reported by
// CartsWithMoreThanFiveItems.
const LargeCartThreshold = 5

// Accessor reads and writes cart state through a kv.Store. Every call issues
// its store commands one after another and holds no lock across them, so
// concurrent callers touching the same cart can observe half-applied writes.
//
// The two registry-wide reports are coalesced. A caller joins an in-flight
// scan only when no write through this Accessor has completed since that scan
// started, so a report never misses the caller's own earlier writes.
type Accessor struct {
	store   kv.Store
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	reports singleflight.Group
	writes  atomic.Uint64 // completed mutating calls, keys report flights
}

// Option configures an Accessor
type Option func(*Accessor)

// WithLogger replaces the default no-op logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(a *Accessor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records per-operation counters and latencies
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Accessor) {
		a.metrics = m
	}
}

// New returns an Accessor over store
func New(store kv.Store, opts ...Option) *Accessor {
	a := &Accessor{
		store:  store,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ping checks the backing store
func (a *Accessor) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

func (a *Accessor) observe(ctx context.Context, op string, start time.Time, err error) {
	a.metrics.RecordOperation(ctx, op, err, time.Since(start))
	if err != nil {
		a.logger.Debugw("Cart operation failed", "op", op, "error", err)
	}
}

// members reads a set, treating a missing key as empty
func (a *Accessor) members(ctx context.Context, key string) ([]string, error) {
	raw, err := a.store.SMembers(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]string, len(raw))
	for i, m := range raw {
		out[i] = string(m)
	}
	return out, nil
}

// CreateCart registers cart:<userID>, adds the products to its membership
// set, marks it unpaid and writes one line entry per product. Creating a cart
// that already exists merges into it; lines for products missing from the new
// list are left in place.
func (a *Accessor) CreateCart(ctx context.Context, userID string, products []catalog.Product) (err error) {
	defer func(start time.Time) { a.observe(ctx, "CreateCart", start, err) }(time.Now())
	defer a.writes.Add(1)

	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	cartID := CartKey(userID)

	if _, err := a.store.SAdd(ctx, RegistryKey, []byte(cartID)); err != nil {
		return fmt.Errorf("register cart %s: %w", cartID, err)
	}

	ids := make([][]byte, len(products))
	for i, p := range products {
		ids[i] = []byte(p.ID)
	}
	if _, err := a.store.SAdd(ctx, ProductsKey(cartID), ids...); err != nil {
		return fmt.Errorf("add products to %s: %w", cartID, err)
	}

	if err := a.store.SetString(ctx, PaidKey(cartID), unpaidFlag); err != nil {
		return fmt.Errorf("mark %s unpaid: %w", cartID, err)
	}

	for _, p := range products {
		if err := a.store.HSetFields(ctx, LineKey(cartID, p.ID), lineFields(p)); err != nil {
			return fmt.Errorf("write line %s: %w", LineKey(cartID, p.ID), err)
		}
	}

	a.logger.Infow("Cart created", "cartId", cartID, "products", len(products))
	return nil
}

// GetAllCartIDs returns the registry, unordered
func (a *Accessor) GetAllCartIDs(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { a.observe(ctx, "GetAllCartIDs", start, err) }(time.Now())
	return a.members(ctx, RegistryKey)
}

func (a *Accessor) FindUnpaidCarts(ctx context.Context) (unpaid []string, err error) {
	defer func(start time.Time) { a.observe(ctx, "FindUnpaidCarts", start, err) }(time.Now())

	ids, err := a.members(ctx, RegistryKey)
	if err != nil {
		return nil, err
	}

	unpaid = []string{}
	for _, id := range ids {
		flag, err := a.store.GetString(ctx, PaidKey(id))
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if flag == unpaidFlag {
			unpaid = append(unpaid, id)
		}
	}
	return unpaid, nil
}

func (a *Accessor) CartsWithMoreThanFiveItems(ctx context.Context) (large []string, err error) {
	defer func(start time.Time) { a.observe(ctx, "CartsWithMoreThanFiveItems", start, err) }(time.Now())

	ids, err := a.members(ctx, RegistryKey)
	if err != nil {
		return nil, err
	}

	large = []string{}
	for _, id := range ids {
		count, err := a.store.SCard(ctx, ProductsKey(id))
		if err != nil {
			return nil, err
		}
		if count > LargeCartThreshold {
			large = append(large, id)
		}
	}
	return large, nil
}

func (a *Accessor) CountCartsWithProduct(ctx context.Context, productID string) (count int, err error) {
	defer func(start time.Time) { a.observe(ctx, "CountCartsWithProduct", start, err) }(time.Now())

	ids, err := a.members(ctx, RegistryKey)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		ok, err := a.store.SIsMember(ctx, ProductsKey(id), []byte(productID))
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// CalculateCartTotal sums price*quantity over the cart's current lines. A
// member whose line entry is gone or unparsable yields ErrMalformedLine.
func (a *Accessor) CalculateCartTotal(ctx context.Context, cartID string) (total int64, err error) {
	defer func(start time.Time) { a.observe(ctx, "CalculateCartTotal", start, err) }(time.Now())
	return a.cartTotal(ctx, cartID)
}

func (a *Accessor) cartTotal(ctx context.Context, cartID string) (int64, error) {
	productIDs, err := a.members(ctx, ProductsKey(cartID))
	if err != nil {
		return 0, err
	}

	var total int64
	for _, productID := range productIDs {
		key := LineKey(cartID, productID)
		fields, err := a.store.HGetAll(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s is missing", ErrMalformedLine, key)
		}
		if err != nil {
			return 0, err
		}

		line, err := parseLine(key, fields)
		if err != nil {
			return 0, err
		}
		total += line.Subtotal()
	}
	return total, nil
}

// GetCartsByUser returns every registered cart whose identifier starts with
// cart:<userID>. This is a plain prefix match, so "ncdai-1" also selects
// cart:ncdai-10.
func (a *Accessor) GetCartsByUser(ctx context.Context, userID string) (carts []string, err error) {
	defer func(start time.Time) { a.observe(ctx, "GetCartsByUser", start, err) }(time.Now())

	ids, err := a.members(ctx, RegistryKey)
	if err != nil {
		return nil, err
	}

	prefix := CartKey(userID)
	carts = []string{}
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			carts = append(carts, id)
		}
	}
	return carts, nil
}

// RemoveProduct drops the product from the membership set and deletes its
// line. Both commands are always sent; their errors are joined.
func (a *Accessor) RemoveProduct(ctx context.Context, cartID, productID string) (err error) {
	defer func(start time.Time) { a.observe(ctx, "RemoveProduct", start, err) }(time.Now())
	defer a.writes.Add(1)

	_, remErr := a.store.SRem(ctx, ProductsKey(cartID), []byte(productID))
	_, delErr := a.store.Del(ctx, LineKey(cartID, productID))
	return errors.Join(remErr, delErr)
}

// IncrementProduct adds one to the stored quantity of a line. Membership is
// not checked.
func (a *Accessor) IncrementProduct(ctx context.Context, cartID, productID string) (err error) {
	defer func(start time.Time) { a.observe(ctx, "IncrementProduct", start, err) }(time.Now())
	defer a.writes.Add(1)

	_, err = a.store.HIncrBy(ctx, LineKey(cartID, productID), fieldQuantity, 1)
	if errors.Is(err, kv.ErrNotInteger) {
		return fmt.Errorf("%w: %s quantity: %v", ErrMalformedLine, LineKey(cartID, productID), err)
	}
	return err
}

// ClearCart deletes every line reachable from the membership set, then the
// set itself. The cart stays in the registry and keeps its paid flag.
func (a *Accessor) ClearCart(ctx context.Context, cartID string) (err error) {
	defer func(start time.Time) { a.observe(ctx, "ClearCart", start, err) }(time.Now())
	defer a.writes.Add(1)

	productIDs, err := a.members(ctx, ProductsKey(cartID))
	if err != nil {
		return err
	}

	if len(productIDs) > 0 {
		lineKeys := make([]string, len(productIDs))
		for i, productID := range productIDs {
			lineKeys[i] = LineKey(cartID, productID)
		}
		if _, err := a.store.Del(ctx, lineKeys...); err != nil {
			return err
		}
	}

	_, err = a.store.Del(ctx, ProductsKey(cartID))
	return err
}

// report runs scan once for every caller that asks for the same report
// between two completed writes. The shared scan is detached from any one
// caller's cancellation; each caller still returns as soon as its own ctx is
// done.
func (a *Accessor) report(ctx context.Context, name string, scan func(context.Context) (interface{}, error)) (interface{}, error) {
	key := name + ":" + strconv.FormatUint(a.writes.Load(), 10)
	scanCtx := context.WithoutCancel(ctx)

	ch := a.reports.DoChan(key, func() (interface{}, error) {
		return scan(scanCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FindCartWithMaxTotal returns the cart with the strictly highest total.
// Ties keep the first cart seen. Zero is the starting point, so a registry
// whose totals are all zero reports a nil CartID. Carts with malformed lines
// never win.
func (a *Accessor) FindCartWithMaxTotal(ctx context.Context) (result MaxTotal, err error) {
	defer func(start time.Time) { a.observe(ctx, "FindCartWithMaxTotal", start, err) }(time.Now())

	v, err := a.report(ctx, "max-total", func(ctx context.Context) (interface{}, error) {
		return a.maxTotal(ctx)
	})
	if err != nil {
		return MaxTotal{}, err
	}
	return v.(MaxTotal), nil
}

func (a *Accessor) maxTotal(ctx context.Context) (result MaxTotal, err error) {
	ids, err := a.members(ctx, RegistryKey)
	if err != nil {
		return MaxTotal{}, err
	}

	for _, id := range ids {
		total, err := a.cartTotal(ctx, id)
		if errors.Is(err, ErrMalformedLine) {
			a.logger.Warnw("Skipping cart with malformed line", "cartId", id, "error", err)
			continue
		}
		if err != nil {
			return MaxTotal{}, err
		}

		if total > result.Total {
			cartID := id
			result = MaxTotal{CartID: &cartID, Total: total}
		}
	}
	return result, nil
}

// GetMostFrequentProduct tallies product ids across every membership set and
// returns the most common one. Ties go to the id seen first during the scan.
func (a *Accessor) GetMostFrequentProduct(ctx context.Context) (result ProductFrequency, err error) {
	defer func(start time.Time) { a.observe(ctx, "GetMostFrequentProduct", start, err) }(time.Now())

	v, err := a.report(ctx, "top-product", func(ctx context.Context) (interface{}, error) {
		return a.mostFrequent(ctx)
	})
	if err != nil {
		return ProductFrequency{}, err
	}
	return v.(ProductFrequency), nil
}

func (a *Accessor) mostFrequent(ctx context.Context) (ProductFrequency, error) {
	ids, err := a.members(ctx, RegistryKey)
	if err != nil {
		return ProductFrequency{}, err
	}

	counter := make(map[string]int)
	var order []string
	for _, id := range ids {
		productIDs, err := a.members(ctx, ProductsKey(id))
		if err != nil {
			return ProductFrequency{}, err
		}
		for _, productID := range productIDs {
			if _, seen := counter[productID]; !seen {
				order = append(order, productID)
			}
			counter[productID]++
		}
	}

	if len(order) == 0 {
		return ProductFrequency{}, nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counter[order[i]] > counter[order[j]]
	})

	top := order[0]
	return ProductFrequency{ProductID: &top, Count: counter[top]}, nil
}

// GetLineEntry reads the snapshot stored for one product of a cart
func (a *Accessor) GetLineEntry(ctx context.Context, cartID, productID string) (line LineEntry, err error) {
	defer func(start time.Time) { a.observe(ctx, "GetLineEntry", start, err) }(time.Now())

	key := LineKey(cartID, productID)
	fields, err := a.store.HGetAll(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return LineEntry{}, fmt.Errorf("%w: %s", ErrLineNotFound, key)
	}
	if err != nil {
		return LineEntry{}, err
	}
	return parseLine(key, fields)
}

func (a *Accessor) IsPaid(ctx context.Context, cartID string) (paid bool, err error) {
	defer func(start time.Time) { a.observe(ctx, "IsPaid", start, err) }(time.Now())

	flag, err := a.store.GetString(ctx, PaidKey(cartID))
	if errors.Is(err, kv.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrCartNotFound, cartID)
	}
	if err != nil {
		return false, err
	}
	return flag == paidFlag, nil
}

// MarkPaid stores the two-state paid flag
func (a *Accessor) MarkPaid(ctx context.Context, cartID string, paid bool) (err error) {
	defer func(start time.Time) { a.observe(ctx, "MarkPaid", start, err) }(time.Now())
	defer a.writes.Add(1)

	flag := unpaidFlag
	if paid {
		flag = paidFlag
	}
	return a.store.SetString(ctx, PaidKey(cartID), flag)
}
