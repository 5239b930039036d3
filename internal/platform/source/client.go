package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const loginPath = "/wp-login.php"

// ClientConfig configures the loinc.org download client.
type ClientConfig struct {
	BaseURL    string
	Username   string
	Password   string
	Timeout    time.Duration
	RetryCount int
}

// Client downloads distribution archives from loinc.org. It logs in once and
// reuses the session cookies for every download.
type Client struct {
	http     *resty.Client
	username string
	password string
	logger   zerolog.Logger

	loginOnce sync.Once
	loginErr  error
}

// NewClient creates a Client. Retries apply to transport errors and 5xx
// responses.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		})

	return &Client{
		http:     httpClient,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
	}
}

func (c *Client) login(ctx context.Context) error {
	c.loginOnce.Do(func() {
		resp, err := c.http.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"log": c.username,
				"pwd": c.password,
			}).
			Post(loginPath)
		if err != nil {
			c.loginErr = fmt.Errorf("%w: %v", ErrLoginFailed, err)
			return
		}
		if resp.IsError() {
			c.loginErr = fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode())
			return
		}
		c.logger.Debug().Str("user", c.username).Msg("logged in to loinc.org")
	})
	return c.loginErr
}

// Fetch logs in if needed and downloads the archive behind download.
func (c *Client) Fetch(ctx context.Context, download string) ([]byte, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"tc_submit":   "Download",
			"tc_accepted": "1",
		}).
		Post("/download/" + download + "/")
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", download, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download %s: status %d", download, resp.StatusCode())
	}

	body := resp.Body()
	if !IsArchive(body) {
		// loinc.org answers an unauthenticated download with an HTML page.
		return nil, fmt.Errorf("download %s: %w", download, ErrNotArchive)
	}

	c.logger.Info().
		Str("download", download).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("downloaded archive")
	return body, nil
}
