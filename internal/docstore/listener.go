// Package docstore keeps a standing subscription on the catalog collections.
// Postgres triggers publish on the catalog_changes channel; every notification
// re-reads the affected collection and pushes it to the subscriber.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"chocolate-storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the Postgres NOTIFY channel the catalog triggers publish on.
const Channel = "catalog_changes"

// Notification payloads.
const (
	PayloadProducts = "products"
	PayloadShipping = "shipping"
)

// Handler receives pushed snapshots. OnError reports a lost subscription; the
// listener keeps retrying until unsubscribed.
type Handler struct {
	OnProducts func([]domain.Product)
	OnShipping func(domain.ShippingSettings)
	OnError    func(error)
}

type productReader interface {
	ListOrdered(ctx context.Context) ([]domain.Product, error)
}

type shippingReader interface {
	Get(ctx context.Context) (domain.ShippingSettings, error)
}

// Listener implements the standing subscription over LISTEN/NOTIFY.
type Listener struct {
	pool       *pgxpool.Pool
	products   productReader
	shipping   shippingReader
	logger     *log.Logger
	retryDelay time.Duration
}

func NewListener(pool *pgxpool.Pool, products productReader, shipping shippingReader, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Listener{
		pool:       pool,
		products:   products,
		shipping:   shipping,
		logger:     logger,
		retryDelay: 2 * time.Second,
	}
}

// Subscribe delivers the current products and shipping settings, then keeps
// pushing changes until the returned unsubscribe func is called or ctx ends.
func (l *Listener) Subscribe(ctx context.Context, h Handler) (func(), error) {
	conn, err := l.connect(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("initial catalog load: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.run(runCtx, h, conn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// connect issues LISTEN on a dedicated connection and only then reads the
// full catalog, so a change landing in between still arrives as a
// notification.
func (l *Listener) connect(ctx context.Context, h Handler) (*pgx.Conn, error) {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("listen: %w", err)
	}
	if err := l.loadAll(ctx, h); err != nil {
		conn.Close(context.Background())
		return nil, err
	}
	return conn, nil
}

func (l *Listener) run(ctx context.Context, h Handler, conn *pgx.Conn) {
	for {
		err := l.consume(ctx, conn, h)
		conn.Close(context.Background())
		for {
			if ctx.Err() != nil {
				l.logger.Printf("docstore: subscription closed")
				return
			}
			l.logger.Printf("docstore: subscription lost error=%v", err)
			if h.OnError != nil {
				h.OnError(err)
			}
			select {
			case <-ctx.Done():
				continue
			case <-time.After(l.retryDelay):
			}
			if conn, err = l.connect(ctx, h); err == nil {
				break
			}
		}
	}
}

// consume applies notifications until the connection fails.
func (l *Listener) consume(ctx context.Context, conn *pgx.Conn, h Handler) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait notification: %w", err)
		}
		switch n.Payload {
		case PayloadProducts:
			err = l.loadProducts(ctx, h)
		case PayloadShipping:
			err = l.loadShipping(ctx, h)
		default:
			err = l.loadAll(ctx, h)
		}
		if err != nil {
			return err
		}
	}
}

func (l *Listener) loadAll(ctx context.Context, h Handler) error {
	return errors.Join(l.loadProducts(ctx, h), l.loadShipping(ctx, h))
}

func (l *Listener) loadProducts(ctx context.Context, h Handler) error {
	products, err := l.products.ListOrdered(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	if h.OnProducts != nil {
		h.OnProducts(products)
	}
	return nil
}

func (l *Listener) loadShipping(ctx context.Context, h Handler) error {
	settings, err := l.shipping.Get(ctx)
	if err != nil {
		return fmt.Errorf("load shipping settings: %w", err)
	}
	if h.OnShipping != nil {
		h.OnShipping(settings)
	}
	return nil
}
