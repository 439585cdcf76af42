// Package reports builds the admin dashboard figures over a trailing window.
package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
	"ordersite/internal/repository"
)

const (
	unknownProduct = "不明な商品"
	topProducts    = 5
	recentOrders   = 5
)

var ErrInvalidWindow = errors.New("days must be one of 7, 30, 90, 365")

// Windows are the supported report lengths in days.
var Windows = []int{7, 30, 90, 365}

func ValidWindow(days int) bool {
	for _, d := range Windows {
		if d == days {
			return true
		}
	}
	return false
}

type StatusCount struct {
	Status models.OrderStatus `json:"status"`
	Label  string             `json:"label"`
	Count  int                `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type ProductCount struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type RecentOrder struct {
	ID           primitive.ObjectID `json:"id"`
	OrderNumber  string             `json:"orderNumber"`
	Status       models.OrderStatus `json:"status"`
	CustomerName string             `json:"customerName"`
	CreatedAt    time.Time          `json:"createdAt"`
}

type Report struct {
	Days           int            `json:"days"`
	From           time.Time      `json:"from"`
	GeneratedAt    time.Time      `json:"generatedAt"`
	TotalOrders    int            `json:"totalOrders"`
	TotalProducts  int64          `json:"totalProducts"`
	NewUsers       int64          `json:"newUsers"`
	OrdersByStatus []StatusCount  `json:"ordersByStatus"`
	OrdersByMonth  []MonthCount   `json:"ordersByMonth"`
	TopProducts    []ProductCount `json:"topProducts"`
	RecentOrders   []RecentOrder  `json:"recentOrders"`
}

// Aggregate computes the order-derived parts of a report. orders may come in
// any order; names resolves product ids for lines without a name snapshot.
func Aggregate(orders []models.Order, lines []models.OrderLine, names map[primitive.ObjectID]string, loc *time.Location) Report {
	if loc == nil {
		loc = time.UTC
	}

	sorted := append([]models.Order(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	statusCounts := map[models.OrderStatus]int{}
	monthCounts := map[string]int{}
	for _, o := range sorted {
		statusCounts[o.Status]++
		monthCounts[o.CreatedAt.In(loc).Format("2006-01")]++
	}

	byStatus := make([]StatusCount, 0, len(statusCounts))
	for _, s := range models.OrderStatuses {
		if n := statusCounts[s]; n > 0 {
			byStatus = append(byStatus, StatusCount{Status: s, Label: s.Label(), Count: n})
			delete(statusCounts, s)
		}
	}
	// Legacy or hand-edited statuses still get counted.
	extra := make([]models.OrderStatus, 0, len(statusCounts))
	for s := range statusCounts {
		extra = append(extra, s)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, s := range extra {
		byStatus = append(byStatus, StatusCount{Status: s, Label: s.Label(), Count: statusCounts[s]})
	}

	byMonth := make([]MonthCount, 0, len(monthCounts))
	for month, n := range monthCounts {
		byMonth = append(byMonth, MonthCount{Month: month, Count: n})
	}
	sort.Slice(byMonth, func(i, j int) bool { return byMonth[i].Month < byMonth[j].Month })

	quantities := map[string]int{}
	for _, line := range lines {
		quantities[lineName(line, names)] += line.Quantity
	}
	top := make([]ProductCount, 0, len(quantities))
	for name, qty := range quantities {
		top = append(top, ProductCount{Name: name, Quantity: qty})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Quantity != top[j].Quantity {
			return top[i].Quantity > top[j].Quantity
		}
		return top[i].Name < top[j].Name
	})
	if len(top) > topProducts {
		top = top[:topProducts]
	}

	recent := make([]RecentOrder, 0, recentOrders)
	for _, o := range sorted {
		if len(recent) == recentOrders {
			break
		}
		recent = append(recent, RecentOrder{
			ID:           o.ID,
			OrderNumber:  o.OrderNumber,
			Status:       o.Status,
			CustomerName: o.Shipping.Name,
			CreatedAt:    o.CreatedAt,
		})
	}

	return Report{
		TotalOrders:    len(orders),
		OrdersByStatus: byStatus,
		OrdersByMonth:  byMonth,
		TopProducts:    top,
		RecentOrders:   recent,
	}
}

func lineName(line models.OrderLine, names map[primitive.ObjectID]string) string {
	if name, ok := names[line.ProductID]; ok && name != "" {
		return name
	}
	if line.ProductName != "" {
		return line.ProductName
	}
	return unknownProduct
}

type OrderSource interface {
	List(ctx context.Context, f repository.OrderFilter) ([]models.Order, error)
	Lines(ctx context.Context, orderIDs ...primitive.ObjectID) ([]models.OrderLine, error)
}

type ProductSource interface {
	Count(ctx context.Context, f repository.ProductFilter) (int64, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
}

type UserCounter interface {
	Count(ctx context.Context, f repository.UserFilter) (int64, error)
}

type Service struct {
	orders   OrderSource
	products ProductSource
	users    UserCounter
	loc      *time.Location
	now      func() time.Time
	log      *logrus.Entry
}

func NewService(orders OrderSource, products ProductSource, users UserCounter, loc *time.Location) *Service {
	return &Service{
		orders:   orders,
		products: products,
		users:    users,
		loc:      loc,
		now:      time.Now,
		log:      logrus.WithField("component", "reports"),
	}
}

// Build loads the window's orders and aggregates them.
func (s *Service) Build(ctx context.Context, days int) (*Report, error) {
	if !ValidWindow(days) {
		return nil, ErrInvalidWindow
	}

	now := s.now()
	from := now.AddDate(0, 0, -days)

	orders, err := s.orders.List(ctx, repository.OrderFilter{CreatedFrom: &from})
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	lines, err := s.orders.Lines(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}

	productIDs := make([]primitive.ObjectID, 0, len(lines))
	seen := map[primitive.ObjectID]bool{}
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			productIDs = append(productIDs, l.ProductID)
		}
	}
	products, err := s.products.GetMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	names := make(map[primitive.ObjectID]string, len(products))
	for id, p := range products {
		names[id] = p.Name
	}

	totalProducts, err := s.products.Count(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	newUsers, err := s.users.Count(ctx, repository.UserFilter{CreatedFrom: &from})
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	report := Aggregate(orders, lines, names, s.loc)
	report.Days = days
	report.From = from
	report.GeneratedAt = now
	report.TotalProducts = totalProducts
	report.NewUsers = newUsers

	s.log.WithFields(logrus.Fields{"days": days, "orders": report.TotalOrders}).Debug("report built")
	return &report, nil
}
