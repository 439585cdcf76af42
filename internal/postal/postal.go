// Package postal resolves Japanese postal codes to addresses via zipcloud.
package postal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"ordersite/internal/cache"
	"ordersite/internal/metrics"
)

const (
	DefaultBaseURL = "https://zipcloud.ibsnet.co.jp/api/search"
	DefaultTimeout = 5 * time.Second

	cacheTTL = 24 * time.Hour
)

var (
	ErrInvalidCode = errors.New("郵便番号は7桁の数字で入力してください")
	ErrNotFound    = errors.New("該当する住所が見つかりません")
	ErrUnavailable = errors.New("住所検索サービスに接続できません")
)

type Address struct {
	PostalCode     string `json:"postalCode"`
	Prefecture     string `json:"prefecture"`
	City           string `json:"city"`
	Town           string `json:"town"`
	PrefectureKana string `json:"prefectureKana,omitempty"`
	CityKana       string `json:"cityKana,omitempty"`
	TownKana       string `json:"townKana,omitempty"`
	PrefectureCode string `json:"prefectureCode,omitempty"`
}

type searchResponse struct {
	Status  int     `json:"status"`
	Message *string `json:"message"`
	Results []struct {
		Address1 string `json:"address1"`
		Address2 string `json:"address2"`
		Address3 string `json:"address3"`
		Kana1    string `json:"kana1"`
		Kana2    string `json:"kana2"`
		Kana3    string `json:"kana3"`
		PrefCode string `json:"prefcode"`
		Zipcode  string `json:"zipcode"`
	} `json:"results"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *cache.Cache
	log        *logrus.Entry
}

// NewClient builds a zipcloud client. c may be nil to disable caching.
func NewClient(baseURL string, timeout time.Duration, c *cache.Cache) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	log := logrus.WithField("component", "postal")

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "zipcloud",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(logrus.Fields{
					"circuit_breaker": name,
					"from":            from.String(),
					"to":              to.String(),
				}).Warn("circuit breaker state changed")
			},
		}),
		cache: c,
		log:   log,
	}
}

// Lookup returns every address registered under code. A hyphen and
// full-width digits are accepted.
func (c *Client) Lookup(ctx context.Context, code string) ([]Address, error) {
	normalized := Normalize(code)
	if len(normalized) != 7 {
		metrics.PostalLookups.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCode
	}

	key := "postal:" + normalized
	if c.cache != nil {
		var cached []Address
		if c.cache.Get(ctx, key, &cached) {
			metrics.PostalLookups.WithLabelValues("cached").Inc()
			return cached, nil
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, normalized)
	})
	if err != nil {
		metrics.PostalLookups.WithLabelValues("error").Inc()
		c.log.WithError(err).WithField("postalCode", normalized).Warn("postal lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	addresses := result.([]Address)
	if len(addresses) == 0 {
		metrics.PostalLookups.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, addresses, cacheTTL)
	}
	metrics.PostalLookups.WithLabelValues("found").Inc()
	return addresses, nil
}

func (c *Client) fetch(ctx context.Context, code string) ([]Address, error) {
	endpoint := fmt.Sprintf("%s?zipcode=%s", c.baseURL, url.QueryEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request zipcloud: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode zipcloud response: %w", err)
	}
	if payload.Status != http.StatusOK {
		msg := ""
		if payload.Message != nil {
			msg = *payload.Message
		}
		// zipcloud reports bad input as status 400 inside a 200 response.
		if payload.Status == http.StatusBadRequest {
			return []Address{}, nil
		}
		return nil, fmt.Errorf("zipcloud status %d: %s", payload.Status, msg)
	}

	addresses := make([]Address, 0, len(payload.Results))
	for _, r := range payload.Results {
		addresses = append(addresses, Address{
			PostalCode:     r.Zipcode,
			Prefecture:     r.Address1,
			City:           r.Address2,
			Town:           r.Address3,
			PrefectureKana: r.Kana1,
			CityKana:       r.Kana2,
			TownKana:       r.Kana3,
			PrefectureCode: r.PrefCode,
		})
	}
	return addresses, nil
}

// Normalize keeps ASCII digits and folds full-width digits; everything else,
// hyphens and the 〒 mark included, is dropped.
func Normalize(code string) string {
	out := make([]rune, 0, 7)
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
			out = append(out, r)
		case r >= '０' && r <= '９':
			out = append(out, '0'+(r-'０'))
		}
	}
	return string(out)
}
