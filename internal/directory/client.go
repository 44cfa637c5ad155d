// Package directory talks to the Atlassian admin hub (roster) and the Jira
// site REST API (removal).
package directory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/metrics"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

const (
	DefaultAdminBaseURL = "https://admin.atlassian.com"
	DefaultPageSize     = 100
	sessionCookie       = "cloud.session.token"
)

// Config addresses the directory endpoints and the retry policy.
type Config struct {
	AdminBaseURL   string
	SiteBaseURL    string
	OrganizationID string
	PageSize       int
	Timeout        time.Duration
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.AdminBaseURL == "" {
		c.AdminBaseURL = DefaultAdminBaseURL
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	return c
}

// Client implements purge.RosterSource and purge.DirectoryAdmin.
type Client struct {
	http *resty.Client
	cfg  Config
	log  zerolog.Logger
}

// New builds a client. The site base URL is required for removals only.
func New(cfg Config, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	c := resty.New().
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	return &Client{http: c, cfg: cfg, log: log}
}

type usersPage struct {
	Users []model.DirectoryUser `json:"users"`
	Total int                   `json:"total"`
}

// FetchUsers pages through the organization roster. Any failed page fails
// the whole fetch so callers never act on a partial roster.
func (c *Client) FetchUsers(ctx context.Context, cred model.Credential) ([]model.DirectoryUser, error) {
	if c.cfg.OrganizationID == "" {
		return nil, fmt.Errorf("directory: organization id is not configured")
	}
	if cred.CloudSessionToken == "" {
		return nil, fmt.Errorf("directory: robot has no cloud session token")
	}
	url := fmt.Sprintf("%s/gateway/api/adminhub/um/org/%s/users", c.cfg.AdminBaseURL, c.cfg.OrganizationID)

	var users []model.DirectoryUser
	for start := 1; ; start += c.cfg.PageSize {
		var page usersPage
		_, err := c.do(ctx, "fetch_users", func() (*resty.Response, error) {
			return c.http.R().
				SetContext(ctx).
				SetCookie(&http.Cookie{Name: sessionCookie, Value: cred.CloudSessionToken}).
				SetQueryParam("count", fmt.Sprint(c.cfg.PageSize)).
				SetQueryParam("start-index", fmt.Sprint(start)).
				SetResult(&page).
				Get(url)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch users at %d: %w", start, err)
		}
		users = append(users, page.Users...)
		if len(page.Users) == 0 || page.Total <= start+c.cfg.PageSize-1 {
			break
		}
	}
	c.log.Debug().Int("users", len(users)).Msg("Roster fetched")
	return users, nil
}

// RemoveUser deletes userID from the Jira site. A 404 means the user is
// already gone and counts as success.
func (c *Client) RemoveUser(ctx context.Context, cred model.Credential, userID string) error {
	if c.cfg.SiteBaseURL == "" {
		return fmt.Errorf("directory: site base URL is not configured")
	}
	req := func() *resty.Request {
		return c.http.R().
			SetContext(ctx).
			SetBasicAuth(cred.PlatformEmail, cred.PlatformAPIKey)
	}
	var call func() (*resty.Response, error)
	if cred.PlatformType == model.PlatformServer {
		call = func() (*resty.Response, error) {
			return req().SetQueryParam("key", userID).Delete(c.cfg.SiteBaseURL + "/rest/api/2/user")
		}
	} else {
		call = func() (*resty.Response, error) {
			return req().SetQueryParam("accountId", userID).Delete(c.cfg.SiteBaseURL + "/rest/api/3/user")
		}
	}
	_, err := c.do(ctx, "remove_user", call)
	if err != nil {
		if ce, ok := err.(*ClassifiedError); ok && ce.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("remove user %s: %w", userID, err)
	}
	return nil
}

// do runs call with exponential backoff on recoverable failures.
func (c *Client) do(ctx context.Context, op string, call func() (*resty.Response, error)) (*resty.Response, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = c.cfg.MaxBackoff
	exp.Reset()

	for attempt := 1; ; attempt++ {
		resp, err := call()
		var cerr *ClassifiedError
		switch {
		case err != nil:
			if ctx.Err() != nil {
				metrics.DirectoryRequestsTotal.WithLabelValues(op, "canceled").Inc()
				return nil, ctx.Err()
			}
			cerr = NewNetworkError(op, err)
		case resp.IsError():
			cerr = NewHTTPError(resp.StatusCode(), resp.String(), op)
		default:
			metrics.DirectoryRequestsTotal.WithLabelValues(op, "ok").Inc()
			return resp, nil
		}

		if cerr.Category == Irrecoverable || attempt >= c.cfg.MaxAttempts {
			metrics.DirectoryRequestsTotal.WithLabelValues(op, "error").Inc()
			return nil, cerr
		}
		wait := exp.NextBackOff()
		metrics.DirectoryRetriesTotal.WithLabelValues(op).Inc()
		c.log.Warn().Err(cerr).Str("op", op).Int("attempt", attempt).Dur("backoff", wait).Msg("Directory call failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
