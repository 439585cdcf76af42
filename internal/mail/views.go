package mail

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ordersite/internal/models"
)

const defaultContactCategory = "一般的なお問い合わせ"

// OrderView is the data behind order_confirmation and status_update. The JSON
// names match what the storefront posts to /api/send-email.
type OrderView struct {
	OrderID      string     `json:"order_id"`
	OrderNumber  string     `json:"order_number"`
	CustomerName string     `json:"customer_name"`
	ShippingName string     `json:"shipping_name"`
	PostalCode   string     `json:"shipping_postal_code"`
	Prefecture   string     `json:"shipping_prefecture"`
	City         string     `json:"shipping_city"`
	Address1     string     `json:"shipping_address"`
	CreatedAt    *time.Time `json:"created_at"`
	DeliveryDate string     `json:"delivery_date"`
	Status       string     `json:"status"`
	Note         string     `json:"note"`
	Lines        []LineView `json:"order_lines"`

	loc *time.Location
}

type LineView struct {
	ProductName string `json:"product_name"`
	Product     *struct {
		Name string `json:"name"`
	} `json:"product"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

func (l LineView) DisplayName() string {
	if l.Product != nil && l.Product.Name != "" {
		return l.Product.Name
	}
	return l.ProductName
}

func (v OrderView) Recipient() string {
	if v.CustomerName != "" {
		return v.CustomerName
	}
	return v.ShippingName
}

func (v OrderView) Address() string {
	return v.Prefecture + v.City + v.Address1
}

func (v OrderView) OrderedAt() string {
	if v.CreatedAt == nil {
		return ""
	}
	return formatDateTime(*v.CreatedAt, v.loc)
}

// StatusLabel shows known statuses in Japanese and passes others through.
func (v OrderView) StatusLabel() string {
	return models.OrderStatus(v.Status).Label()
}

func (v OrderView) validate() error {
	if strings.TrimSpace(v.OrderNumber) == "" {
		return fmt.Errorf("%w: order_number is required", ErrInvalidData)
	}
	return nil
}

// NewOrderView flattens a stored order for the templates.
func NewOrderView(order *models.Order, lines []models.OrderLine, customerName string) OrderView {
	created := order.CreatedAt
	if created.IsZero() {
		created = order.RequestedAt
	}
	view := OrderView{
		OrderID:      order.ID.Hex(),
		OrderNumber:  order.OrderNumber,
		CustomerName: customerName,
		ShippingName: order.Shipping.Name,
		PostalCode:   order.Shipping.PostalCode,
		Prefecture:   order.Shipping.Prefecture,
		City:         order.Shipping.City,
		Address1:     order.Shipping.Address1,
		CreatedAt:    &created,
		DeliveryDate: order.DeliveryDate,
		Status:       string(order.Status),
		Note:         order.Note,
	}
	for _, l := range lines {
		view.Lines = append(view.Lines, LineView{ProductName: l.ProductName, Quantity: l.Quantity, Note: l.Note})
	}
	return view
}

type ContactView struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (v ContactView) Category() string {
	if strings.TrimSpace(v.Type) == "" {
		return defaultContactCategory
	}
	return v.Type
}

func (v ContactView) validate() error {
	if strings.TrimSpace(v.Name) == "" || strings.TrimSpace(v.Email) == "" || strings.TrimSpace(v.Message) == "" {
		return fmt.Errorf("%w: name, email and message are required", ErrInvalidData)
	}
	return nil
}

func decodeView(t Type, raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	switch t {
	case OrderConfirmation, StatusUpdate:
		var v OrderView
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return v, v.validate()
	case ContactInquiry, ContactAutoReply:
		var v ContactView
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return v, v.validate()
	}
	return nil, ErrInvalidType
}

func formatDateTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006/01/02 15:04")
}
