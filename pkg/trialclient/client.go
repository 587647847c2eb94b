package trialclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smallbiznis-crm/pkg/credentials"
	"smallbiznis-crm/pkg/middleware"
	"smallbiznis-crm/services/trial"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const statusPath = "/api/billing/trial"

var ErrUnexpectedStatus = errors.New("trialclient: unexpected response status")

type Options struct {
	BaseURL      string
	TenantID     string
	Credentials  credentials.Source
	Pricing      trial.Pricing
	SubscribeURL string
	Timeout      time.Duration
}

// Client reads the tenant's trial status from the billing API.
type Client struct {
	http         *resty.Client
	tenantID     string
	creds        credentials.Source
	pricing      trial.Pricing
	subscribeURL string
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		tenantID:     opts.TenantID,
		creds:        opts.Credentials,
		pricing:      opts.Pricing,
		subscribeURL: opts.SubscribeURL,
	}
}

// Fetch returns the validated status. Malformed payloads are errors.
func (c *Client) Fetch(ctx context.Context) (trial.TrialStatus, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader(middleware.TenantHeader, c.tenantID)

	if c.creds != nil {
		cred, err := c.creds.Resolve(ctx)
		if err != nil {
			return trial.TrialStatus{}, fmt.Errorf("trialclient: resolve credentials: %w", err)
		}
		req.SetAuthToken(cred.Token)
	}

	resp, err := req.Get(statusPath)
	if err != nil {
		return trial.TrialStatus{}, fmt.Errorf("trialclient: fetch status: %w", err)
	}
	if resp.IsError() {
		return trial.TrialStatus{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
	}

	return trial.DecodeTrialStatus(resp.Body())
}

// Banner renders the banner for the current status, or a hidden banner when
// the status cannot be fetched.
func (c *Client) Banner(ctx context.Context) trial.Banner {
	status, err := c.Fetch(ctx)
	if err != nil {
		zap.L().Warn("trial status unavailable, hiding banner", zap.String("tenant_id", c.tenantID), zap.Error(err))
		return trial.HiddenBanner()
	}
	return c.Render(status)
}

func (c *Client) Render(status trial.TrialStatus) trial.Banner {
	return trial.RenderBanner(status, c.pricing, c.subscribeURL)
}
