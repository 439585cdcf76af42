package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ordersite/internal/calendar"
	"ordersite/internal/postal"
)

type PostalLookup interface {
	Lookup(ctx context.Context, code string) ([]postal.Address, error)
}

/*
GET /api/calendar?month=YYYY-MM
- defaults to the current month in the site time zone
- each day says whether it can be picked as a delivery date
*/
func GetDeliveryCalendar(cal *calendar.Calendar, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/calendar"
		defer handlePanic(c, route)

		current := now().In(cal.Location())
		year, month := current.Year(), current.Month()
		if raw := strings.TrimSpace(c.Query("month")); raw != "" {
			parsed, err := time.ParseInLocation("2006-01", raw, cal.Location())
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "month must be YYYY-MM")
				return
			}
			year, month = parsed.Year(), parsed.Month()
		}

		c.JSON(http.StatusOK, gin.H{
			"month":              calendar.NewDate(year, month, 1).Time().Format("2006-01"),
			"today":              cal.Today(current).String(),
			"earliestSelectable": cal.EarliestSelectable(current).String(),
			"days":               cal.Month(year, month, current),
		})
	}
}

/*
GET /api/postal/:code
- 7 digits, hyphen tolerated
- upstream outages answer 503 so the form can fall back to manual entry
*/
func LookupPostalCode(client PostalLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/postal/:code"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		addresses, err := client.Lookup(ctx, c.Param("code"))
		switch {
		case errors.Is(err, postal.ErrInvalidCode):
			respondWithError(c, http.StatusBadRequest, route, "郵便番号は7桁の数字で入力してください")
			return
		case errors.Is(err, postal.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "該当する住所が見つかりませんでした")
			return
		case err != nil:
			respondWithError(c, http.StatusServiceUnavailable, route, "住所検索サービスに接続できませんでした")
			return
		}

		c.JSON(http.StatusOK, gin.H{"results": addresses})
	}
}
