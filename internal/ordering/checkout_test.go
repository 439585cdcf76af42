package ordering

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/calendar"
	"ordersite/internal/models"
	"ordersite/internal/repository"
)

type checkoutFixture struct {
	svc       *Checkout
	orders    *memOrders
	notifier  *recordingNotifier
	events    *recordingEvents
	customer  primitive.ObjectID
	bolt      models.Product
	anchor    models.Product
	retired   models.Product
	addressID primitive.ObjectID
}

// Monday 2025-03-03 10:00 JST; the earliest deliverable day is Tuesday 03-04.
var checkoutNow = time.Date(2025, 3, 3, 10, 0, 0, 0, jst)

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		orders:   newMemOrders(),
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
		customer: primitive.NewObjectID(),
		bolt:     models.Product{ID: primitive.NewObjectID(), SKU: "BLT-M8", Name: "六角ボルト M8", MinOrderQty: 10, IsActive: true},
		anchor:   models.Product{ID: primitive.NewObjectID(), SKU: "ANC-01", Name: "アンカー", IsActive: true},
		retired:  models.Product{ID: primitive.NewObjectID(), SKU: "OLD-01", Name: "旧製品", IsActive: false},
	}
	f.addressID = primitive.NewObjectID()

	addresses := memAddresses{
		f.addressID: {
			ID:         f.addressID,
			UserID:     f.customer,
			Company:    "山田建設",
			SiteName:   "第二工区",
			Name:       "山田太郎",
			PostalCode: "100-0001",
			Prefecture: "東京都",
			City:       "千代田区",
			Address1:   "千代田1-1",
			Phone:      "03-0000-0000",
		},
	}

	f.svc = NewCheckout(CheckoutDeps{
		Products:  memProducts{f.bolt.ID: f.bolt, f.anchor.ID: f.anchor, f.retired.ID: f.retired},
		Addresses: addresses,
		Orders:    f.orders,
		Numberer:  NewNumberer(newMemSequences(), f.orders, jst),
		Calendar:  calendar.New(jst, 1, 60),
		Notifier:  f.notifier,
		Events:    f.events,
		Now:       func() time.Time { return checkoutNow },
	})
	return f
}

func (f *checkoutFixture) request() Request {
	return Request{
		CustomerID:   f.customer,
		AddressID:    &f.addressID,
		DeliveryDate: "2025-03-04",
		Lines: []LineRequest{
			{ProductID: f.bolt.ID, Quantity: 20, Note: "亜鉛メッキ"},
			{ProductID: f.anchor.ID, Quantity: 1},
		},
	}
}

func TestSubmitCreatesNumberedOrder(t *testing.T) {
	f := newCheckoutFixture()

	res, err := f.svc.Submit(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, "ORD-20250303-001", res.Order.OrderNumber)
	assert.Equal(t, models.StatusPending, res.Order.Status)
	assert.Equal(t, "2025-03-04", res.Order.DeliveryDate)
	assert.Equal(t, 21, res.Order.TotalQuantity)
	assert.Equal(t, "東京都千代田区千代田1-1", res.Order.Shipping.Address)
	assert.Empty(t, res.EmailWarning)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "BLT-M8", res.Lines[0].ProductSKU)
	assert.Equal(t, "亜鉛メッキ", res.Lines[0].Note)
	assert.Equal(t, res.Order.ID, res.Lines[0].OrderID)

	assert.Equal(t, []string{"ORD-20250303-001"}, f.notifier.confirmations)
	assert.Equal(t, []string{"order.created"}, f.events.subjects)

	second, err := f.svc.Submit(context.Background(), f.request())
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250303-002", second.Order.OrderNumber)
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	req := f.request()
	req.Lines = nil

	_, err := f.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.orders.createCall)
}

func TestSubmitRejectsQuantityBelowMOQ(t *testing.T) {
	f := newCheckoutFixture()
	req := f.request()
	req.Lines[0].Quantity = 5

	_, err := f.svc.Submit(context.Background(), req)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Lines, 1)
	assert.Equal(t, f.bolt.ID, verr.Lines[0].ProductID)
	assert.Equal(t, 10, verr.Lines[0].MOQ)
	assert.Equal(t, 5, verr.Lines[0].Quantity)
	assert.Zero(t, f.orders.createCall)
}

func TestSubmitMergesRepeatedProducts(t *testing.T) {
	f := newCheckoutFixture()
	req := f.request()
	req.Lines = []LineRequest{
		{ProductID: f.bolt.ID, Quantity: 6},
		{ProductID: f.bolt.ID, Quantity: 6},
	}

	res, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 12, res.Lines[0].Quantity)
}

func TestSubmitRejectsUnknownAndInactiveProducts(t *testing.T) {
	f := newCheckoutFixture()
	req := f.request()
	req.Lines = []LineRequest{
		{ProductID: primitive.NewObjectID(), Quantity: 1},
		{ProductID: f.retired.ID, Quantity: 1},
	}

	_, err := f.svc.Submit(context.Background(), req)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Lines, 2)
}

func TestSubmitValidatesDeliveryDate(t *testing.T) {
	cases := map[string]string{
		"missing":  "",
		"today":    "2025-03-03",
		"past":     "2025-03-01",
		"saturday": "2025-03-08",
		"holiday":  "2025-03-20",
		"too far":  "2025-06-30",
	}
	for name, date := range cases {
		t.Run(name, func(t *testing.T) {
			f := newCheckoutFixture()
			req := f.request()
			req.DeliveryDate = date

			_, err := f.svc.Submit(context.Background(), req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, "deliveryDate")
		})
	}
}

func TestSubmitWithInlineShipping(t *testing.T) {
	f := newCheckoutFixture()
	req := f.request()
	req.AddressID = nil
	req.Shipping = &models.ShippingSnapshot{
		Name:       " 佐藤花子 ",
		Phone:      "090-1111-2222",
		PostalCode: "５３０－０００１",
		Prefecture: "大阪府",
		City:       "大阪市北区",
		Address1:   "梅田1-1",
	}

	res, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "佐藤花子", res.Order.Shipping.Name)
	assert.Equal(t, "5300001", res.Order.Shipping.PostalCode)
	assert.Equal(t, "大阪府大阪市北区梅田1-1", res.Order.Shipping.Address)
}

func TestSubmitRequiresShippingFields(t *testing.T) {
	f := newCheckoutFixture()
	req := f.request()
	req.AddressID = nil
	req.Shipping = &models.ShippingSnapshot{Name: "佐藤", PostalCode: "12"}

	_, err := f.svc.Submit(context.Background(), req)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "shipping.phone")
	assert.Contains(t, verr.Fields, "shipping.prefecture")
	assert.Contains(t, verr.Fields, "shipping.postalCode")
	assert.NotContains(t, verr.Fields, "shipping.name")
}

func TestSubmitRejectsForeignAddress(t *testing.T) {
	f := newCheckoutFixture()
	req := f.request()
	req.CustomerID = primitive.NewObjectID()

	_, err := f.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestSubmitRetriesOnNumberClash(t *testing.T) {
	f := newCheckoutFixture()
	// A number written outside the counter, e.g. by a restored backup.
	f.orders.taken["ORD-20250303-001"] = true
	seq := newMemSequences()
	seq.counters["order:20250303"] = 0
	f.svc.Numberer = NewNumberer(seq, f.orders, jst)

	res, err := f.svc.Submit(context.Background(), f.request())
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250303-002", res.Order.OrderNumber)
	assert.Equal(t, 2, f.orders.createCall)
}

func TestSubmitGivesUpAfterRepeatedClashes(t *testing.T) {
	f := newCheckoutFixture()
	f.orders.createErr = repository.ErrDuplicate

	_, err := f.svc.Submit(context.Background(), f.request())
	assert.ErrorIs(t, err, ErrNumberingExhausted)
	assert.Equal(t, maxNumberAttempts, f.orders.createCall)
}

func TestSubmitKeepsOrderWhenEmailFails(t *testing.T) {
	f := newCheckoutFixture()
	f.notifier.err = errBoom

	res, err := f.svc.Submit(context.Background(), f.request())
	require.NoError(t, err)
	assert.NotEmpty(t, res.EmailWarning)
	assert.Len(t, f.orders.orders, 1)
}

func TestSubmitPropagatesStoreErrors(t *testing.T) {
	f := newCheckoutFixture()
	f.orders.createErr = errBoom

	_, err := f.svc.Submit(context.Background(), f.request())
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.notifier.confirmations)
}

func TestReviewDoesNotPersist(t *testing.T) {
	f := newCheckoutFixture()

	draft, err := f.svc.Review(context.Background(), f.request())
	require.NoError(t, err)
	assert.Empty(t, draft.Order.OrderNumber)
	assert.Equal(t, 21, draft.Order.TotalQuantity)
	assert.Zero(t, f.orders.createCall)
}
