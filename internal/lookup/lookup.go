// Package lookup resolves principals' group and institution memberships
// against the university directory service.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/uisautomation/mediaplatform/internal/config"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// Client fetches membership snapshots from the directory, caching them for
// a configured lifetime. Failures degrade to the empty membership so that
// authorization fails closed rather than erroring whole requests.
type Client struct {
	root       string
	scheme     string
	token      string
	lifetime   time.Duration
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	membership domain.Membership
	expires    time.Time
}

// NewClient creates a directory client from configuration.
func NewClient(cfg config.LookupConfig, logger *slog.Logger) *Client {
	return &Client{
		root:       cfg.Root,
		scheme:     cfg.PeopleIDScheme,
		token:      cfg.BearerToken,
		lifetime:   cfg.CacheLifetime,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        logger.With("adapter", "lookup"),
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// MembershipFor returns the membership snapshot for the principal. The
// anonymous principal always has the empty membership. Directory failures
// are logged and reported as the empty membership.
func (c *Client) MembershipFor(ctx context.Context, p domain.Principal) domain.Membership {
	if p.IsAnonymous() {
		return domain.EmptyMembership
	}

	c.mu.Lock()
	if entry, ok := c.cache[p.Username]; ok && c.now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.membership
	}
	c.mu.Unlock()

	m, err := c.fetch(ctx, p.Username)
	if err != nil {
		c.log.WarnContext(ctx, "directory lookup failed",
			slog.String("crsid", p.Username),
			slog.String("error", err.Error()),
		)
		return domain.EmptyMembership
	}

	c.mu.Lock()
	c.cache[p.Username] = cacheEntry{membership: m, expires: c.now().Add(c.lifetime)}
	c.mu.Unlock()

	return m
}

type personResponse struct {
	Result struct {
		Person struct {
			Groups []struct {
				GroupID string `json:"groupid"`
			} `json:"groups"`
			Institutions []struct {
				InstID string `json:"instid"`
			} `json:"institutions"`
		} `json:"person"`
	} `json:"result"`
}

func (c *Client) fetch(ctx context.Context, crsid string) (domain.Membership, error) {
	reqURL := c.root + "people/" + url.PathEscape(c.scheme) + "/" + url.PathEscape(crsid) +
		"?fetch=all_groups,all_insts&format=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.EmptyMembership, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.EmptyMembership, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.EmptyMembership, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.EmptyMembership, fmt.Errorf("read body: %w", err)
	}

	var pr personResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return domain.EmptyMembership, fmt.Errorf("decode response: %w", err)
	}

	var m domain.Membership
	for _, g := range pr.Result.Person.Groups {
		if g.GroupID != "" {
			m.GroupIDs = append(m.GroupIDs, g.GroupID)
		}
	}
	for _, inst := range pr.Result.Person.Institutions {
		if inst.InstID != "" {
			m.InstIDs = append(m.InstIDs, inst.InstID)
		}
	}
	return m, nil
}
