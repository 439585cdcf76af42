// Package ordering turns carts into orders and moves orders through their
// status lifecycle.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/calendar"
	"ordersite/internal/metrics"
	"ordersite/internal/models"
	"ordersite/internal/postal"
	"ordersite/internal/repository"
)

const maxNumberAttempts = 3

var postalCodePattern = regexp.MustCompile(`^\d{7}$`)

type ProductLookup interface {
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
}

type AddressLookup interface {
	Get(ctx context.Context, userID, id primitive.ObjectID) (*models.ShippingAddress, error)
}

type OrderWriter interface {
	CreateWithLines(ctx context.Context, order *models.Order, lines []models.OrderLine) error
}

// ConfirmationSender mails the order confirmation. Errors are reported to the
// caller as a warning only.
type ConfirmationSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, lines []models.OrderLine) error
}

type EventPublisher interface {
	Publish(subject string, payload interface{}) error
}

type LineRequest struct {
	ProductID primitive.ObjectID `json:"productId"`
	Quantity  int                `json:"quantity"`
	Note      string             `json:"note,omitempty"`
}

// Request is everything needed to place one order. Either AddressID or
// Shipping must be set; AddressID wins when both are.
type Request struct {
	CustomerID   primitive.ObjectID
	Lines        []LineRequest
	AddressID    *primitive.ObjectID
	Shipping     *models.ShippingSnapshot
	DeliveryDate string
	Note         string
}

// Draft is a validated order that has not been numbered or stored.
type Draft struct {
	Order *models.Order      `json:"order"`
	Lines []models.OrderLine `json:"lines"`
}

type Result struct {
	Order        *models.Order      `json:"order"`
	Lines        []models.OrderLine `json:"lines"`
	EmailWarning string             `json:"emailWarning,omitempty"`
}

type CheckoutDeps struct {
	Products  ProductLookup
	Addresses AddressLookup
	Orders    OrderWriter
	Numberer  *Numberer
	Calendar  *calendar.Calendar
	Notifier  ConfirmationSender
	Events    EventPublisher
	Now       func() time.Time
}

type Checkout struct {
	CheckoutDeps
	log *logrus.Entry
}

func NewCheckout(deps CheckoutDeps) *Checkout {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Checkout{
		CheckoutDeps: deps,
		log:          logrus.WithField("component", "checkout"),
	}
}

// Review validates the request and returns the order it would create.
func (s *Checkout) Review(ctx context.Context, req Request) (*Draft, error) {
	return s.prepare(ctx, req, s.Now())
}

// Submit validates, numbers and stores the order and its lines atomically.
// The confirmation email is attempted afterwards and never undoes the order.
func (s *Checkout) Submit(ctx context.Context, req Request) (*Result, error) {
	now := s.Now()
	draft, err := s.prepare(ctx, req, now)
	if err != nil {
		return nil, err
	}

	order, lines := draft.Order, draft.Lines
	for attempt := 1; ; attempt++ {
		number, err := s.Numberer.Next(ctx, now)
		if err != nil {
			return nil, err
		}
		order.OrderNumber = number

		err = s.Orders.CreateWithLines(ctx, order, lines)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("store order: %w", err)
		}
		s.log.WithFields(logrus.Fields{"orderNumber": number, "attempt": attempt}).Warn("order number already taken, retrying")
		if attempt >= maxNumberAttempts {
			return nil, ErrNumberingExhausted
		}
	}

	metrics.OrdersCreated.Inc()
	s.log.WithFields(logrus.Fields{
		"orderId":       order.ID.Hex(),
		"orderNumber":   order.OrderNumber,
		"customerId":    order.CustomerID.Hex(),
		"totalQuantity": order.TotalQuantity,
	}).Info("order created")

	if s.Events != nil {
		if err := s.Events.Publish("order.created", OrderEvent{
			OrderID:     order.ID.Hex(),
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID.Hex(),
			Status:      string(order.Status),
			OccurredAt:  now,
		}); err != nil {
			s.log.WithError(err).Warn("order.created event not published")
		}
	}

	result := &Result{Order: order, Lines: lines}
	if s.Notifier != nil {
		if err := s.Notifier.SendOrderConfirmation(ctx, order, lines); err != nil {
			s.log.WithError(err).WithField("orderNumber", order.OrderNumber).Warn("order confirmation email failed")
			result.EmailWarning = "ご注文は受け付けましたが、確認メールの送信に失敗しました"
		}
	}
	return result, nil
}

func (s *Checkout) prepare(ctx context.Context, req Request, now time.Time) (*Draft, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	verr := &ValidationError{}

	shipping, err := s.resolveShipping(ctx, req)
	if err != nil {
		return nil, err
	}
	validateShipping(shipping, verr)

	deliveryDate, err := calendar.ParseDate(strings.TrimSpace(req.DeliveryDate))
	if err != nil {
		verr.field("deliveryDate", "配送希望日を選択してください")
	} else if err := s.Calendar.Check(deliveryDate, now); err != nil {
		verr.field("deliveryDate", err.Error())
	}

	requested := mergeLines(req.Lines)
	ids := make([]primitive.ObjectID, 0, len(requested))
	for _, line := range requested {
		ids = append(ids, line.ProductID)
	}
	products, err := s.Products.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	lines := make([]models.OrderLine, 0, len(requested))
	total := 0
	for _, line := range requested {
		product, ok := products[line.ProductID]
		switch {
		case !ok:
			verr.Lines = append(verr.Lines, LineProblem{ProductID: line.ProductID, Reason: "product not found"})
			continue
		case !product.IsActive:
			verr.Lines = append(verr.Lines, LineProblem{ProductID: product.ID, SKU: product.SKU, Name: product.Name, Reason: "product is not available"})
			continue
		case line.Quantity < product.MOQ():
			verr.Lines = append(verr.Lines, LineProblem{
				ProductID: product.ID,
				SKU:       product.SKU,
				Name:      product.Name,
				Reason:    fmt.Sprintf("quantity is below the minimum order quantity of %d", product.MOQ()),
				MOQ:       product.MOQ(),
				Quantity:  line.Quantity,
			})
			continue
		}

		lines = append(lines, models.OrderLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			Quantity:    line.Quantity,
			Note:        strings.TrimSpace(line.Note),
		})
		total += line.Quantity
	}

	if !verr.empty() {
		return nil, verr
	}

	order := &models.Order{
		CustomerID:    req.CustomerID,
		Status:        models.StatusPending,
		Shipping:      shipping,
		DeliveryDate:  deliveryDate.String(),
		Note:          strings.TrimSpace(req.Note),
		TotalQuantity: total,
		RequestedAt:   now,
	}
	return &Draft{Order: order, Lines: lines}, nil
}

func (s *Checkout) resolveShipping(ctx context.Context, req Request) (models.ShippingSnapshot, error) {
	if req.AddressID != nil {
		addr, err := s.Addresses.Get(ctx, req.CustomerID, *req.AddressID)
		if errors.Is(err, repository.ErrNotFound) {
			return models.ShippingSnapshot{}, ErrAddressNotFound
		}
		if err != nil {
			return models.ShippingSnapshot{}, fmt.Errorf("load address: %w", err)
		}
		return addr.Snapshot(), nil
	}
	if req.Shipping == nil {
		return models.ShippingSnapshot{}, nil
	}
	snap := *req.Shipping
	snap.Company = strings.TrimSpace(snap.Company)
	snap.SiteName = strings.TrimSpace(snap.SiteName)
	snap.Name = strings.TrimSpace(snap.Name)
	snap.Phone = strings.TrimSpace(snap.Phone)
	snap.PostalCode = postal.Normalize(snap.PostalCode)
	snap.Prefecture = strings.TrimSpace(snap.Prefecture)
	snap.City = strings.TrimSpace(snap.City)
	snap.Address1 = strings.TrimSpace(snap.Address1)
	snap.Address = snap.Prefecture + snap.City + snap.Address1
	return snap, nil
}

func validateShipping(s models.ShippingSnapshot, verr *ValidationError) {
	required := map[string]string{
		"shipping.name":       s.Name,
		"shipping.phone":      s.Phone,
		"shipping.prefecture": s.Prefecture,
		"shipping.city":       s.City,
		"shipping.address1":   s.Address1,
	}
	for field, value := range required {
		if value == "" {
			verr.field(field, "required")
		}
	}
	if !postalCodePattern.MatchString(postal.Normalize(s.PostalCode)) {
		verr.field("shipping.postalCode", "postal code must be 7 digits")
	}
}

// mergeLines folds repeated products into one line, keeping first-seen order.
func mergeLines(in []LineRequest) []LineRequest {
	out := make([]LineRequest, 0, len(in))
	index := map[primitive.ObjectID]int{}
	for _, line := range in {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			if out[i].Note == "" {
				out[i].Note = line.Note
			}
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

type OrderEvent struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	CustomerID  string    `json:"customerId,omitempty"`
	Status      string    `json:"status"`
	Previous    string    `json:"previous,omitempty"`
	ActorID     string    `json:"actorId,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}
