// Package huayuan scrapes the Huayuan gas provider's WAP portal: the balance
// detail page and the recharge log. The portal serves plain HTML with no API,
// so both fetches parse markup and tolerate noisy values.
package huayuan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/renhe-cloud/gaswatch/internal/domain"
	"github.com/renhe-cloud/gaswatch/internal/metrics"
)

const (
	sourceBalance  = "balance"
	sourceRecharge = "recharge"

	balancePath  = "/index.php?g=Wap&m=Index&a=balance_detail&sn="
	rechargePath = "/index.php?g=Wap&m=Index&a=recharge_log&sn="
)

// Config holds the provider portal settings.
type Config struct {
	BaseURL   string
	Serial    string
	UserAgent string
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Client fetches and parses the provider pages for one account.
type Client struct {
	http      *http.Client
	baseURL   string
	serial    string
	userAgent string
	logger    *zap.Logger
}

// NewClient creates a portal client.
func NewClient(cfg Config) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		serial:    cfg.Serial,
		userAgent: cfg.UserAgent,
		logger:    cfg.Logger,
	}
}

// FetchBalance retrieves the balance detail page and returns a snapshot of
// all recognized readings.
func (c *Client) FetchBalance(ctx context.Context) (domain.BalanceSnapshot, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+balancePath+c.serial, nil)
	if err != nil {
		return domain.BalanceSnapshot{}, domain.NewFetchError(sourceBalance, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ScrapeRequestsTotal.WithLabelValues(sourceBalance, "error").Inc()
		return domain.BalanceSnapshot{}, domain.NewFetchError(sourceBalance, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ScrapeRequestsTotal.WithLabelValues(sourceBalance, "error").Inc()
		return domain.BalanceSnapshot{}, domain.NewFetchError(sourceBalance,
			fmt.Errorf("%w: %d", domain.ErrBadStatus, resp.StatusCode))
	}

	values, err := parseBalance(resp.Body, c.logger)
	if err != nil {
		metrics.ScrapeRequestsTotal.WithLabelValues(sourceBalance, "error").Inc()
		return domain.BalanceSnapshot{}, domain.NewFetchError(sourceBalance, err)
	}

	metrics.ScrapeRequestsTotal.WithLabelValues(sourceBalance, "success").Inc()
	metrics.ScrapeDuration.WithLabelValues(sourceBalance).Observe(time.Since(start).Seconds())

	return domain.BalanceSnapshot{Values: values, FetchedAt: time.Now()}, nil
}

// FetchRecharges retrieves the recharge log for the given calendar date and
// returns the summed total of entries posted on exactly that date.
func (c *Client) FetchRecharges(ctx context.Context, date string) (domain.RechargeTotal, error) {
	start := time.Now()

	form := url.Values{}
	form.Set("begin_date", date)
	form.Set("end_date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+rechargePath+c.serial, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.RechargeTotal{}, domain.NewFetchError(sourceRecharge, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ScrapeRequestsTotal.WithLabelValues(sourceRecharge, "error").Inc()
		return domain.RechargeTotal{}, domain.NewFetchError(sourceRecharge, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ScrapeRequestsTotal.WithLabelValues(sourceRecharge, "error").Inc()
		return domain.RechargeTotal{}, domain.NewFetchError(sourceRecharge,
			fmt.Errorf("%w: %d", domain.ErrBadStatus, resp.StatusCode))
	}

	total, err := parseRecharges(resp.Body, date, c.logger)
	if err != nil {
		metrics.ScrapeRequestsTotal.WithLabelValues(sourceRecharge, "error").Inc()
		return domain.RechargeTotal{}, domain.NewFetchError(sourceRecharge, err)
	}

	metrics.ScrapeRequestsTotal.WithLabelValues(sourceRecharge, "success").Inc()
	metrics.ScrapeDuration.WithLabelValues(sourceRecharge).Observe(time.Since(start).Seconds())

	return domain.RechargeTotal{Amount: total, Date: date, FetchedAt: time.Now()}, nil
}
