package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/metrics"
	"ordersite/internal/models"
)

type Type string

const (
	OrderConfirmation Type = "order_confirmation"
	ContactInquiry    Type = "contact_inquiry"
	ContactAutoReply  Type = "contact_auto_reply"
	StatusUpdate      Type = "status_update"
)

const (
	fallbackFromEmail = "noreply@example.com"
	fallbackSiteName  = "オーダーサイト"
)

func (t Type) Valid() bool {
	switch t {
	case OrderConfirmation, ContactInquiry, ContactAutoReply, StatusUpdate:
		return true
	}
	return false
}

func (t Type) isContact() bool {
	return t == ContactInquiry || t == ContactAutoReply
}

var (
	ErrInvalidType      = errors.New("無効なメールタイプです")
	ErrInvalidRecipient = errors.New("宛先メールアドレスが不正です")
	ErrInvalidData      = errors.New("メール本文のデータが不正です")
	ErrNoRecipient      = errors.New("送信先が見つかりません")
)

// Request is the body of POST /api/send-email.
type Request struct {
	Type Type            `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

type SettingsSource interface {
	Get(ctx context.Context) (*models.SiteSettings, error)
}

type LogStore interface {
	Append(ctx context.Context, entry *models.NotificationLog) error
}

type UserLookup interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.UserProfile, error)
}

type Options struct {
	Settings    SettingsSource
	Logs        LogStore
	Users       UserLookup
	Templates   *Templates
	NewProvider ProviderFactory

	// Used when the stored settings leave them empty.
	DefaultAPIKey    string
	DefaultFromEmail string
	DefaultFromName  string

	Location *time.Location
}

// Notifier renders, sends and logs email. Every attempt ends up in the
// notification log whether or not the provider accepted it.
type Notifier struct {
	opts     Options
	breaker  *gobreaker.CircuitBreaker
	validate *validator.Validate
	now      func() time.Time
	log      *logrus.Entry
}

func NewNotifier(opts Options) *Notifier {
	if opts.NewProvider == nil {
		opts.NewProvider = NewSendGridProvider
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	log := logrus.WithField("component", "mail")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sendgrid",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from":            from.String(),
				"to":              to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return &Notifier{
		opts:     opts,
		breaker:  breaker,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
}

// Dispatch handles a free-form send request. Validation errors wrap
// ErrInvalidType, ErrInvalidRecipient or ErrInvalidData.
func (n *Notifier) Dispatch(ctx context.Context, req Request) error {
	if !req.Type.Valid() {
		return ErrInvalidType
	}
	to := strings.TrimSpace(req.To)
	if err := n.validate.Var(to, "required,email"); err != nil {
		return ErrInvalidRecipient
	}
	view, err := decodeView(req.Type, req.Data)
	if err != nil {
		return err
	}

	var orderID *primitive.ObjectID
	if v, ok := view.(OrderView); ok {
		if id, err := primitive.ObjectIDFromHex(v.OrderID); err == nil {
			orderID = &id
		}
	}
	return n.deliver(ctx, req.Type, to, view, orderID)
}

// SendOrderConfirmation mails the customer who placed the order, unless order
// notifications are switched off.
func (n *Notifier) SendOrderConfirmation(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	settings, err := n.settings(ctx)
	if err != nil {
		return err
	}
	if !settings.OrderNotificationEnabled {
		return nil
	}
	customer, err := n.customer(ctx, order.CustomerID)
	if err != nil {
		return err
	}
	view := NewOrderView(order, lines, customer.FullName)
	return n.deliver(ctx, OrderConfirmation, customer.Email, view, &order.ID)
}

// SendStatusUpdate tells the customer about a status change, unless status
// notifications are switched off.
func (n *Notifier) SendStatusUpdate(ctx context.Context, order *models.Order) error {
	settings, err := n.settings(ctx)
	if err != nil {
		return err
	}
	if !settings.StatusUpdateNotificationEnabled {
		return nil
	}
	customer, err := n.customer(ctx, order.CustomerID)
	if err != nil {
		return err
	}
	view := NewOrderView(order, nil, customer.FullName)
	return n.deliver(ctx, StatusUpdate, customer.Email, view, &order.ID)
}

// SendContact forwards an inquiry to the site's contact address and, when
// enabled, confirms receipt to the sender.
func (n *Notifier) SendContact(ctx context.Context, contact ContactView) error {
	if err := contact.validate(); err != nil {
		return err
	}
	if err := n.validate.Var(contact.Email, "email"); err != nil {
		return ErrInvalidRecipient
	}
	settings, err := n.settings(ctx)
	if err != nil {
		return err
	}

	inbox := firstNonEmpty(settings.ContactEmail, settings.ContactFromEmail, settings.FromEmail, n.opts.DefaultFromEmail)
	if inbox == "" {
		return ErrNoRecipient
	}
	if err := n.deliver(ctx, ContactInquiry, inbox, contact, nil); err != nil {
		return err
	}
	if settings.ContactAutoReplyEnabled {
		return n.deliver(ctx, ContactAutoReply, contact.Email, contact, nil)
	}
	return nil
}

func (n *Notifier) deliver(ctx context.Context, kind Type, to string, view interface{}, orderID *primitive.ObjectID) error {
	entry := &models.NotificationLog{
		Type:      string(kind),
		Recipient: to,
		Subject:   string(kind),
		OrderID:   orderID,
	}

	err := n.send(ctx, kind, to, view, entry)
	if err != nil {
		entry.Status = models.NotificationFailed
		entry.ErrorMessage = err.Error()
		n.log.WithError(err).WithFields(logrus.Fields{"type": kind, "to": to}).Error("email send failed")
	} else {
		sentAt := n.now()
		entry.Status = models.NotificationSent
		entry.SentAt = &sentAt
		n.log.WithFields(logrus.Fields{"type": kind, "to": to}).Info("email sent")
	}
	metrics.EmailsSent.WithLabelValues(string(kind), entry.Status).Inc()

	entry.CreatedAt = n.now()
	if n.opts.Logs != nil {
		if logErr := n.opts.Logs.Append(ctx, entry); logErr != nil {
			n.log.WithError(logErr).Warn("notification log not written")
		}
	}
	return err
}

func (n *Notifier) send(ctx context.Context, kind Type, to string, view interface{}, entry *models.NotificationLog) error {
	settings, err := n.settings(ctx)
	if err != nil {
		return err
	}

	apiKey := firstNonEmpty(settings.SendGridAPIKey, n.opts.DefaultAPIKey)
	if apiKey == "" {
		return ErrNoAPIKey
	}

	siteName := firstNonEmpty(settings.SiteName, fallbackSiteName)
	subjectRef := ""
	if v, ok := view.(OrderView); ok {
		v.loc = n.opts.Location
		view = v
		subjectRef = v.OrderNumber
	}

	rendered, err := n.opts.Templates.Render(kind, templateData{
		SiteName: siteName,
		Site:     *settings,
		View:     view,
		Now:      formatDateTime(n.now(), n.opts.Location),
	}, subjectRef)
	if err != nil {
		return err
	}
	entry.Subject = rendered.Subject
	entry.Body = rendered.HTML

	fromEmail, fromName := n.sender(kind, settings)
	msg := &Message{
		To:       to,
		From:     fromEmail,
		FromName: fromName,
		Subject:  rendered.Subject,
		Body:     rendered.Text,
		BodyHTML: rendered.HTML,
	}

	provider := n.opts.NewProvider(apiKey)
	_, err = n.breaker.Execute(func() (interface{}, error) {
		return provider.Send(ctx, msg)
	})
	return err
}

// sender picks the From header. Contact mail prefers the contact identity.
func (n *Notifier) sender(kind Type, s *models.SiteSettings) (string, string) {
	if kind.isContact() {
		return firstNonEmpty(s.ContactFromEmail, s.FromEmail, n.opts.DefaultFromEmail, fallbackFromEmail),
			firstNonEmpty(s.ContactFromName, s.FromName, s.SiteName, fallbackSiteName)
	}
	return firstNonEmpty(s.FromEmail, n.opts.DefaultFromEmail, fallbackFromEmail),
		firstNonEmpty(s.FromName, s.SiteName, fallbackSiteName)
}

func (n *Notifier) settings(ctx context.Context) (*models.SiteSettings, error) {
	s, err := n.opts.Settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("サイト設定が見つかりません: %w", err)
	}
	return s, nil
}

func (n *Notifier) customer(ctx context.Context, id primitive.ObjectID) (*models.UserProfile, error) {
	if n.opts.Users == nil {
		return nil, ErrNoRecipient
	}
	u, err := n.opts.Users.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	if strings.TrimSpace(u.Email) == "" {
		return nil, ErrNoRecipient
	}
	return u, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
