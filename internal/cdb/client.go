package cdb

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uisautomation/mediaplatform/internal/config"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// Client calls the content delivery backend's management API. Requests are
// authenticated by signing the sorted query parameters with the shared
// secret.
type Client struct {
	baseURL    string
	key        string
	secret     string
	pageSize   int
	maxRetries int
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time
}

// NewClient creates a Client from configuration.
func NewClient(cfg config.CDBConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		key:        cfg.ClientID,
		secret:     cfg.ClientSecret,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        logger.With("adapter", "cdb"),
		now:        time.Now,
	}
}

// VideoList is one page of video resources.
type VideoList struct {
	Videos []Resource `json:"videos"`
	Total  int        `json:"total"`
}

// ChannelList is one page of channel resources.
type ChannelList struct {
	Channels []Resource `json:"channels"`
	Total    int        `json:"total"`
}

// UploadLink describes where media bytes for a video may be uploaded.
type UploadLink struct {
	Protocol string            `json:"protocol"`
	Address  string            `json:"address"`
	Path     string            `json:"path"`
	Query    map[string]string `json:"query"`
}

// URL assembles the link into a single upload URL.
func (l UploadLink) URL() string {
	q := url.Values{}
	for k, v := range l.Query {
		q.Set(k, v)
	}
	u := url.URL{Scheme: l.Protocol, Host: l.Address, Path: l.Path, RawQuery: q.Encode()}
	return u.String()
}

// ListVideos returns one page of video resources starting at offset.
func (c *Client) ListVideos(ctx context.Context, offset int) (*VideoList, error) {
	var list VideoList
	err := c.call(ctx, "/videos/list", url.Values{
		"result_limit":  {strconv.Itoa(c.pageSize)},
		"result_offset": {strconv.Itoa(offset)},
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return &list, nil
}

// VideosByMediaID returns video resources carrying the given legacy media
// id in their custom fields.
func (c *Client) VideosByMediaID(ctx context.Context, mediaID int64) ([]Resource, error) {
	var list VideoList
	err := c.call(ctx, "/videos/list", url.Values{
		"search:custom." + fieldMediaID: {FormatCustomField(typeMedia, strconv.FormatInt(mediaID, 10))},
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("videos by media id %d: %w", mediaID, err)
	}
	return list.Videos, nil
}

// ListChannels returns one page of channel resources starting at offset.
func (c *Client) ListChannels(ctx context.Context, offset int) (*ChannelList, error) {
	var list ChannelList
	err := c.call(ctx, "/channels/list", url.Values{
		"result_limit":  {strconv.Itoa(c.pageSize)},
		"result_offset": {strconv.Itoa(offset)},
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return &list, nil
}

// UpdateVideo applies metadata updates to a video resource. Custom fields
// use "custom.<name>" parameter names.
func (c *Client) UpdateVideo(ctx context.Context, key string, updates url.Values) error {
	params := url.Values{"video_key": {key}}
	for name, vals := range updates {
		params[name] = vals
	}

	if err := c.call(ctx, "/videos/update", params, &struct{}{}); err != nil {
		return fmt.Errorf("update video %s: %w", key, err)
	}
	return nil
}

// CreateVideo creates a new video resource and returns its key. When
// params contains a download_url, the backend fetches the media bytes
// itself.
func (c *Client) CreateVideo(ctx context.Context, params url.Values) (string, error) {
	var resp struct {
		Media struct {
			Key string `json:"key"`
		} `json:"media"`
	}
	if err := c.call(ctx, "/videos/create", params, &resp); err != nil {
		return "", fmt.Errorf("create video: %w", err)
	}
	return resp.Media.Key, nil
}

// DeleteVideo removes a video resource.
func (c *Client) DeleteVideo(ctx context.Context, key string) error {
	if err := c.call(ctx, "/videos/delete", url.Values{"video_key": {key}}); err != nil {
		return fmt.Errorf("delete video %s: %w", key, err)
	}
	return nil
}

// CreateUploadLink asks the backend for a fresh upload link for the video.
func (c *Client) CreateUploadLink(ctx context.Context, key string) (*UploadLink, error) {
	var resp struct {
		Link UploadLink `json:"link"`
	}
	err := c.call(ctx, "/videos/update", url.Values{
		"video_key":   {key},
		"update_file": {"true"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("create upload link for %s: %w", key, err)
	}
	return &resp.Link, nil
}

// call performs one signed GET request against the management API, decoding
// the JSON response into out (which may be omitted). 5xx responses and
// rate limiting are retried with backoff.
func (c *Client) call(ctx context.Context, path string, params url.Values, out ...any) error {
	reqURL := c.baseURL + path + "?" + c.sign(params).Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.log.WarnContext(ctx, "cdb request failed",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.log.WarnContext(ctx, "cdb request retried",
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt),
			)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, domain.ErrUpstream)
		}

		if len(out) > 0 {
			if err := json.Unmarshal(body, out[0]); err != nil {
				return fmt.Errorf("%s: decode response: %w", path, err)
			}
		}
		return nil
	}

	return fmt.Errorf("%s: %v: %w", path, lastErr, domain.ErrUpstream)
}

// sign adds the authentication parameters and the request signature: the
// hex SHA-1 of the sorted, URL-encoded parameters concatenated with the
// shared secret.
func (c *Client) sign(params url.Values) url.Values {
	signed := url.Values{}
	for name, vals := range params {
		signed[name] = vals
	}
	signed.Set("api_format", "json")
	signed.Set("api_key", c.key)
	signed.Set("api_timestamp", strconv.FormatInt(c.now().Unix(), 10))
	signed.Set("api_nonce", nonce())

	keys := make([]string, 0, len(signed))
	for name := range signed {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, name := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(signed.Get(name)))
	}
	sb.WriteString(c.secret)

	digest := sha1.Sum([]byte(sb.String()))
	signed.Set("api_signature", hex.EncodeToString(digest[:]))
	return signed
}

// nonce returns an 8 digit random nonce.
func nonce() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%08d", n.Int64())
}
