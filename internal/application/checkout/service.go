package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mossvale/marketplace/internal/domain/cart"
	"github.com/mossvale/marketplace/internal/domain/catalog"
	"github.com/mossvale/marketplace/internal/domain/identity"
	"github.com/mossvale/marketplace/internal/domain/notify"
	"github.com/mossvale/marketplace/internal/domain/order"
	"github.com/mossvale/marketplace/internal/domain/session"
	"github.com/mossvale/marketplace/internal/infrastructure/metrics"
	"github.com/mossvale/marketplace/internal/pkg/logging"
)

var ErrEmptyCart = errors.New("checkout: cart is empty")

const tracerName = "checkout"

type IDGenerator interface {
	NewID() string
}

// Service is the checkout engine: it converts a session cart into a
// persisted order while the record store guarantees stock is never
// oversold.
type Service struct {
	orders   order.Repository
	sessions session.Repository
	sink     notify.Sink
	idGen    IDGenerator
	met      *metrics.Metrics
	tracer   trace.Tracer

	// mailTimeout bounds the fire-and-forget invoice delivery.
	mailTimeout time.Duration
}

func NewService(
	orders order.Repository,
	sessions session.Repository,
	sink notify.Sink,
	idGen IDGenerator,
	met *metrics.Metrics,
	mailTimeout time.Duration,
) *Service {
	return &Service{
		orders:      orders,
		sessions:    sessions,
		sink:        sink,
		idGen:       idGen,
		met:         met,
		tracer:      otel.Tracer(tracerName),
		mailTimeout: mailTimeout,
	}
}

// Checkout runs the whole settlement: validate cart, reserve every line
// and create the order inside one unit of work, then clear the cart and
// hand the invoice to the notification sink. On any failure nothing is
// committed and the cart is untouched.
func (s *Service) Checkout(ctx context.Context, buyer *identity.User, sess *session.Session) (_ *order.Order, err error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "checkout_service"))

	ctx, span := s.tracer.Start(ctx, "UC.Checkout",
		trace.WithAttributes(
			attribute.String("checkout.buyer_id", buyer.ID),
			attribute.Int("checkout.lines", len(sess.Cart)),
		),
	)
	start := time.Now()
	outcome := "success"

	defer func() {
		if err != nil {
			outcome = outcomeFor(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()

		s.met.CheckoutTotal.WithLabelValues(outcome).Inc()
		s.met.CheckoutDuration.Observe(time.Since(start).Seconds())
		logger.Info("checkout_done",
			zap.String("outcome", outcome),
			zap.Duration("latency", time.Since(start)),
		)
	}()

	if !buyer.Can(identity.CapBuyer) {
		return nil, identity.ErrForbidden
	}
	if sess.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	orderID := s.idGen.NewID()
	var placed *order.Order

	// One atomic unit of work: look up and reserve every line, then write
	// the order. Lines iterate in ascending product-ID order so
	// overlapping concurrent checkouts take row locks in one sequence.
	err = s.orders.Checkout(ctx, func(ctx context.Context, tx order.CheckoutTx) error {
		items := make([]order.Item, 0, len(sess.Cart))

		for _, line := range sess.Cart.Lines() {
			product, lookupErr := tx.ProductForCheckout(ctx, line.ProductID)
			if errors.Is(lookupErr, catalog.ErrProductNotFound) {
				return &catalog.ProductUnavailableError{ProductID: line.ProductID}
			}
			if lookupErr != nil {
				return lookupErr
			}
			if !product.Purchasable() {
				return &catalog.ProductUnavailableError{ProductID: line.ProductID}
			}

			if _, reserveErr := tx.ReserveStock(ctx, line.ProductID, line.Quantity); reserveErr != nil {
				return reserveErr
			}

			storeName, storeErr := tx.StoreName(ctx, product.StoreID)
			if storeErr != nil {
				return storeErr
			}

			items = append(items, order.Item{
				ProductID:   product.ID,
				ProductName: product.Name,
				StoreID:     product.StoreID,
				StoreName:   storeName,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
			})
		}

		entity, newErr := order.New(orderID, buyer.ID, items)
		if newErr != nil {
			return newErr
		}
		if insertErr := tx.InsertOrder(ctx, entity); insertErr != nil {
			return insertErr
		}
		placed = entity
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	// Only after a durable commit does the cart empty out.
	sess.Cart = cart.New()
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		logger.Warn("cart_clear_failed", zap.Error(saveErr))
	}

	span.SetAttributes(attribute.String("checkout.order_id", placed.ID))
	s.sendInvoice(ctx, buyer, placed, logger)

	return placed, nil
}

// sendInvoice hands the invoice to the notification sink with a bounded
// timeout. Delivery failure never affects order success.
func (s *Service) sendInvoice(ctx context.Context, buyer *identity.User, o *order.Order, logger *zap.Logger) {
	if buyer.Email == "" {
		return
	}
	subject, body := ComposeInvoice(buyer, o)

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
	go func() {
		defer cancel()
		if err := s.sink.Send(sendCtx, subject, body, buyer.Email); err != nil {
			s.met.MailFailures.Inc()
			logger.Warn("invoice_send_failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}()
}

func outcomeFor(err error) string {
	var (
		unavailable  *catalog.ProductUnavailableError
		insufficient *catalog.InsufficientStockError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, identity.ErrForbidden):
		return "forbidden"
	case errors.As(err, &unavailable):
		return "product_unavailable"
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	default:
		return "error"
	}
}
