package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// CSV renders the report as sectioned CSV, one block per figure.
func CSV(r *Report) ([]byte, error) {
	rows := [][]string{
		{"指標", "値"},
		{"期間(日)", strconv.Itoa(r.Days)},
		{"集計開始", r.From.Format("2006-01-02")},
		{"注文数", strconv.Itoa(r.TotalOrders)},
		{"商品数", strconv.FormatInt(r.TotalProducts, 10)},
		{"新規ユーザー数", strconv.FormatInt(r.NewUsers, 10)},
		{""},
		{"ステータス", "件数"},
	}
	for _, s := range r.OrdersByStatus {
		rows = append(rows, []string{s.Label, strconv.Itoa(s.Count)})
	}

	rows = append(rows, []string{""}, []string{"月", "件数"})
	for _, m := range r.OrdersByMonth {
		rows = append(rows, []string{m.Month, strconv.Itoa(m.Count)})
	}

	rows = append(rows, []string{""}, []string{"人気商品", "数量"})
	for _, p := range r.TopProducts {
		rows = append(rows, []string{p.Name, strconv.Itoa(p.Quantity)})
	}

	rows = append(rows, []string{""}, []string{"注文番号", "ステータス", "お届け先", "注文日時"})
	for _, o := range r.RecentOrders {
		rows = append(rows, []string{o.OrderNumber, o.Status.Label(), o.CustomerName, o.CreatedAt.Format("2006-01-02 15:04")})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
