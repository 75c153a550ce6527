package oaipmh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	return NewClient(endpoint, "", "", 5*time.Second, slog.New(slog.DiscardHandler))
}

func oaiResponse(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">` + body + `</OAI-PMH>`
}

func recordXML(identifier, datestamp, status, payload string) string {
	statusAttr := ""
	if status != "" {
		statusAttr = ` status="` + status + `"`
	}
	return fmt.Sprintf(`<record><header%s><identifier>%s</identifier><datestamp>%s</datestamp></header><metadata>%s</metadata></record>`,
		statusAttr, identifier, datestamp, payload)
}

func TestListMetadataFormats(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ListMetadataFormats", r.URL.Query().Get("verb"))
		w.Write([]byte(oaiResponse(`<ListMetadataFormats>
			<metadataFormat>
				<metadataPrefix>matterhorn</metadataPrefix>
				<schema>http://example.com/schema.xsd</schema>
				<metadataNamespace>http://www.opencastproject.org/matterhorn/</metadataNamespace>
			</metadataFormat>
			<metadataFormat>
				<metadataPrefix>oai_dc</metadataPrefix>
				<schema>http://www.openarchives.org/OAI/2.0/oai_dc.xsd</schema>
				<metadataNamespace>http://www.openarchives.org/OAI/2.0/oai_dc/</metadataNamespace>
			</metadataFormat>
		</ListMetadataFormats>`)))
	}))
	defer srv.Close()

	formats, err := testClient(t, srv.URL).ListMetadataFormats(context.Background())
	require.NoError(t, err)
	require.Len(t, formats, 2)
	assert.Equal(t, "matterhorn", formats[0].Prefix)
	assert.Equal(t, MatterhornNamespace, formats[0].Namespace)
	assert.Equal(t, "oai_dc", formats[1].Prefix)
}

func TestListRecords_FollowsResumptionToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("resumptionToken") {
		case "":
			assert.Equal(t, "matterhorn", r.URL.Query().Get("metadataPrefix"))
			w.Write([]byte(oaiResponse(`<ListRecords>` +
				recordXML("rec-1", "2020-01-01T00:00:00Z", "", "<x/>") +
				`<resumptionToken>page-2</resumptionToken></ListRecords>`)))
		case "page-2":
			// The prefix must not be repeated alongside the token.
			assert.Empty(t, r.URL.Query().Get("metadataPrefix"))
			w.Write([]byte(oaiResponse(`<ListRecords>` +
				recordXML("rec-2", "2020-01-02T00:00:00Z", "", "<y/>") +
				`</ListRecords>`)))
		default:
			t.Errorf("unexpected resumption token %q", r.URL.Query().Get("resumptionToken"))
		}
	}))
	defer srv.Close()

	records, err := testClient(t, srv.URL).ListRecords(context.Background(), "matterhorn", nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec-1", records[0].Identifier)
	assert.Equal(t, "rec-2", records[1].Identifier)
	assert.Contains(t, records[1].XML, "<y/>")
	assert.True(t, records[0].Datestamp.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestListRecords_SkipsDeletedAndBadDatestamps(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(oaiResponse(`<ListRecords>` +
			recordXML("gone", "2020-01-01T00:00:00Z", "deleted", "") +
			recordXML("mangled", "yesterday-ish", "", "<x/>") +
			recordXML("kept", "2020-01-03T00:00:00Z", "", "<x/>") +
			`</ListRecords>`)))
	}))
	defer srv.Close()

	records, err := testClient(t, srv.URL).ListRecords(context.Background(), "matterhorn", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].Identifier)
}

func TestListRecords_NoRecordsMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(oaiResponse(`<error code="noRecordsMatch">nothing new</error>`)))
	}))
	defer srv.Close()

	records, err := testClient(t, srv.URL).ListRecords(context.Background(), "matterhorn", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListRecords_ProtocolError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(oaiResponse(`<error code="badArgument">no such prefix</error>`)))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).ListRecords(context.Background(), "nope", nil)
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

func TestListRecords_FromUsesZuluForm(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2020-06-01T11:30:00Z", r.URL.Query().Get("from"))
		w.Write([]byte(oaiResponse(`<error code="noRecordsMatch"/>`)))
	}))
	defer srv.Close()

	from := time.Date(2020, 6, 1, 12, 30, 0, 0, time.FixedZone("CET+1", 3600))
	_, err := testClient(t, srv.URL).ListRecords(context.Background(), "matterhorn", &from)
	require.NoError(t, err)
}

func TestClient_BasicAuth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "harvester", user)
		assert.Equal(t, "s3cret", pass)
		w.Write([]byte(oaiResponse(`<ListMetadataFormats></ListMetadataFormats>`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "harvester", "s3cret", 5*time.Second, slog.New(slog.DiscardHandler))
	_, err := c.ListMetadataFormats(context.Background())
	require.NoError(t, err)
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).ListMetadataFormats(context.Background())
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}
