package ordering

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotOrderOwner      = errors.New("order belongs to another customer")
	ErrCannotCancel       = errors.New("order can no longer be cancelled")
	ErrNotCancelled       = errors.New("only cancelled orders can be restored")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrAddressNotFound    = errors.New("shipping address not found")
	ErrNumberingExhausted = errors.New("could not allocate a unique order number")
)

// LineProblem explains why one requested line cannot be ordered.
type LineProblem struct {
	ProductID primitive.ObjectID `json:"productId"`
	SKU       string             `json:"sku,omitempty"`
	Name      string             `json:"name,omitempty"`
	Reason    string             `json:"reason"`
	MOQ       int                `json:"moq,omitempty"`
	Quantity  int                `json:"quantity,omitempty"`
}

// ValidationError collects every problem found in a checkout request.
type ValidationError struct {
	Fields map[string]string `json:"fields,omitempty"`
	Lines  []LineProblem     `json:"lines,omitempty"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields)+len(e.Lines))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	for _, line := range e.Lines {
		parts = append(parts, line.ProductID.Hex()+": "+line.Reason)
	}
	return "invalid order: " + strings.Join(parts, "; ")
}

func (e *ValidationError) field(name, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[name] = msg
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0 && len(e.Lines) == 0
}
