// Package oaipmh implements the subset of the OAI-PMH protocol needed to
// harvest metadata records: ListMetadataFormats and ListRecords with
// resumption-token paging.
package oaipmh

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// MatterhornNamespace identifies Opencast mediapackage metadata within
// OAI-PMH records.
const MatterhornNamespace = "http://www.opencastproject.org/matterhorn/"

// Client talks to a single OAI-PMH repository endpoint.
type Client struct {
	endpoint string
	user     string
	password string

	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a client for the repository at endpoint. Basic auth is
// used when user is non-empty.
func NewClient(endpoint, user, password string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		user:       user,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("adapter", "oaipmh", "endpoint", endpoint),
	}
}

// MetadataFormat is one entry of a ListMetadataFormats response.
type MetadataFormat struct {
	Prefix    string `xml:"metadataPrefix"`
	Schema    string `xml:"schema"`
	Namespace string `xml:"metadataNamespace"`
}

// Record is one entry of a ListRecords response.
type Record struct {
	Identifier string
	Datestamp  time.Time
	Deleted    bool

	// XML is the serialised record element, wrapper included.
	XML string
}

type envelope struct {
	Error struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
	Formats []MetadataFormat `xml:"ListMetadataFormats>metadataFormat"`
	Records []rawRecord      `xml:"ListRecords>record"`
	Token   string           `xml:"ListRecords>resumptionToken"`
}

type rawRecord struct {
	Header struct {
		Status     string `xml:"status,attr"`
		Identifier string `xml:"identifier"`
		Datestamp  string `xml:"datestamp"`
	} `xml:"header"`
	Inner string `xml:",innerxml"`
}

// ListMetadataFormats fetches the metadata formats the repository supports.
func (c *Client) ListMetadataFormats(ctx context.Context) ([]MetadataFormat, error) {
	params := url.Values{"verb": {"ListMetadataFormats"}}

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if env.Error.Code != "" {
		return nil, fmt.Errorf("ListMetadataFormats: %s (%s): %w",
			env.Error.Message, env.Error.Code, domain.ErrUpstream)
	}
	return env.Formats, nil
}

// ListRecords streams all records for the metadata prefix, following
// resumption tokens. from bounds the harvest window; nil fetches
// everything. Records flagged deleted by the repository are skipped. An
// empty result is not an error even though the protocol reports it as one.
func (c *Client) ListRecords(ctx context.Context, prefix string, from *time.Time) ([]Record, error) {
	params := url.Values{
		"verb":           {"ListRecords"},
		"metadataPrefix": {prefix},
	}
	if from != nil {
		// The protocol mandates the "Z" zulu form, not "+00:00".
		params.Set("from", from.UTC().Format("2006-01-02T15:04:05")+"Z")
	}

	var records []Record
	for {
		env, err := c.get(ctx, params)
		if err != nil {
			return nil, err
		}
		if env.Error.Code == "noRecordsMatch" {
			return records, nil
		}
		if env.Error.Code != "" {
			return nil, fmt.Errorf("ListRecords: %s (%s): %w",
				env.Error.Message, env.Error.Code, domain.ErrUpstream)
		}

		for _, raw := range env.Records {
			if raw.Header.Status == "deleted" {
				continue
			}

			datestamp, err := time.Parse(time.RFC3339, raw.Header.Datestamp)
			if err != nil {
				c.log.Warn("skipping record with bad datestamp",
					"identifier", raw.Header.Identifier, "datestamp", raw.Header.Datestamp)
				continue
			}

			records = append(records, Record{
				Identifier: raw.Header.Identifier,
				Datestamp:  datestamp,
				XML:        "<record>" + raw.Inner + "</record>",
			})
		}

		if env.Token == "" {
			return records, nil
		}
		params = url.Values{
			"verb":            {"ListRecords"},
			"resumptionToken": {env.Token},
		}
	}
}

func (c *Client) get(ctx context.Context, params url.Values) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build oaipmh request: %w", err)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oaipmh request: %w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("oaipmh request: status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	var env envelope
	if err := xml.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode oaipmh response: %w: %w", domain.ErrUpstream, err)
	}
	return &env, nil
}
