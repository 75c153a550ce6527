package cdb

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// Custom field names used by the legacy integration.
const (
	fieldMediaID      = "sms_media_id"
	fieldCollectionID = "sms_collection_id"
	fieldACL          = "sms_acl"
	fieldDownloadable = "sms_downloadable"
	fieldLanguage     = "sms_language"
	fieldCopyright    = "sms_copyright"
	fieldKeywords     = "sms_keywords"
	fieldCreatedBy    = "sms_created_by"
	fieldCreator      = "sms_creator"
	fieldInstID       = "sms_instid"
	fieldGroupID      = "sms_groupid"
	fieldMediaIDs     = "sms_media_ids"
	fieldLastUpdated  = "sms_last_updated_at"
)

// Custom field type tags, matched against by ParseCustomField.
const (
	typeMedia        = "media"
	typeCollection   = "collection"
	typeACL          = "acl"
	typeDownloadable = "downloadable"
	typeLanguage     = "language"
	typeCopyright    = "copyright"
	typeKeywords     = "keywords"
	typeCreatedBy    = "created_by"
	typeCreator      = "creator"
	typeInstID       = "instid"
	typeGroupID      = "groupid"
	typeMediaIDs     = "media_ids"
	typeLastUpdated  = "last_updated_at"
)

// StatusError is the status reported by the CDB for a video whose ingest or
// transcode failed. Such items stay hidden from non-editors.
const StatusError = "error"

// Resource is a raw CDB resource document with typed accessors. Accessors
// return zero values for absent or malformed fields unless stated otherwise.
type Resource map[string]any

// DecodeResource parses a raw cached resource document.
func DecodeResource(data json.RawMessage) (Resource, error) {
	var r Resource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode cdb resource: %w", err)
	}
	return r, nil
}

// Key returns the resource key.
func (r Resource) Key() string {
	s, _ := r["key"].(string)
	return s
}

// Title returns the resource title.
func (r Resource) Title() string {
	s, _ := r["title"].(string)
	return s
}

// Description returns the resource description.
func (r Resource) Description() string {
	s, _ := r["description"].(string)
	return s
}

// Status returns the processing status of a video resource.
func (r Resource) Status() string {
	s, _ := r["status"].(string)
	return s
}

// Updated returns the resource's updated timestamp (seconds since epoch),
// or zero when absent.
func (r Resource) Updated() int64 {
	return r.epochField("updated")
}

// Date returns the resource's publication timestamp, or nil when absent.
func (r Resource) Date() *time.Time {
	secs := r.epochField("date")
	if secs == 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

// Duration returns the media duration in seconds. The CDB reports it as a
// decimal string.
func (r Resource) Duration() float64 {
	switch v := r["duration"].(type) {
	case string:
		d, _ := strconv.ParseFloat(v, 64)
		return d
	case float64:
		return v
	}
	return 0
}

// MediaType maps the resource's mediatype onto the catalogue's media types.
func (r Resource) MediaType() domain.MediaType {
	s, _ := r["mediatype"].(string)
	switch s {
	case "video":
		return domain.MediaTypeVideo
	case "audio":
		return domain.MediaTypeAudio
	default:
		return domain.MediaTypeUnknown
	}
}

// Tags returns the resource's tags. The CDB stores them as one
// comma-separated string.
func (r Resource) Tags() []string {
	s, _ := r["tags"].(string)
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// custom returns the custom field with the given name, or "".
func (r Resource) custom(name string) string {
	fields, _ := r["custom"].(map[string]any)
	s, _ := fields[name].(string)
	return s
}

// MediaID returns the legacy media id of a video resource, or 0 when the
// resource carries none.
func (r Resource) MediaID() int64 {
	raw := r.custom(fieldMediaID)
	if raw == "" {
		return 0
	}
	value, err := ParseCustomField(typeMedia, raw)
	if err != nil {
		return 0
	}
	id, _ := strconv.ParseInt(value, 10, 64)
	return id
}

// CollectionID returns the legacy collection id of a channel resource, or 0.
func (r Resource) CollectionID() int64 {
	raw := r.custom(fieldCollectionID)
	if raw == "" {
		return 0
	}
	value, err := ParseCustomField(typeCollection, raw)
	if err != nil {
		return 0
	}
	id, _ := strconv.ParseInt(value, 10, 64)
	return id
}

// ACL returns the resource's ACL atoms. Resources without a recorded ACL
// default to world-visible, matching the legacy system's behaviour.
func (r Resource) ACL() ([]string, error) {
	raw := r.custom(fieldACL)
	if raw == "" {
		return []string{"WORLD"}, nil
	}
	value, err := ParseCustomField(typeACL, raw)
	if err != nil {
		return nil, err
	}
	return ParseACL(value), nil
}

// Downloadable reports whether the legacy system marked the media as
// downloadable.
func (r Resource) Downloadable() bool {
	raw := r.custom(fieldDownloadable)
	if raw == "" {
		return false
	}
	value, err := ParseCustomField(typeDownloadable, raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(value, "true")
}

// Language returns the media's ISO 639-3 language code, or "".
func (r Resource) Language() string {
	raw := r.custom(fieldLanguage)
	if raw == "" {
		return ""
	}
	value, err := ParseCustomField(typeLanguage, raw)
	if err != nil {
		return ""
	}
	return value
}

// Copyright returns the media's copyright statement, or "".
func (r Resource) Copyright() string {
	raw := r.custom(fieldCopyright)
	if raw == "" {
		return ""
	}
	value, err := ParseCustomField(typeCopyright, raw)
	if err != nil {
		return ""
	}
	return value
}

// Keywords returns legacy keywords as tags, pipe separated in the source.
func (r Resource) Keywords() []string {
	raw := r.custom(fieldKeywords)
	if raw == "" {
		return nil
	}
	value, err := ParseCustomField(typeKeywords, raw)
	if err != nil {
		return nil
	}
	var keywords []string
	for _, kw := range strings.Split(value, "|") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// InstID returns the owning institution id of a channel resource, or "".
func (r Resource) InstID() string {
	raw := r.custom(fieldInstID)
	if raw == "" {
		return ""
	}
	value, err := ParseCustomField(typeInstID, raw)
	if err != nil {
		return ""
	}
	return value
}

// GroupID returns the editing group id of a channel resource, or "".
func (r Resource) GroupID() string {
	raw := r.custom(fieldGroupID)
	if raw == "" {
		return ""
	}
	value, err := ParseCustomField(typeGroupID, raw)
	if err != nil {
		return ""
	}
	return value
}

// MediaIDs returns the legacy media ids making up a channel resource's
// collection, comma separated in the source.
func (r Resource) MediaIDs() []int64 {
	raw := r.custom(fieldMediaIDs)
	if raw == "" {
		return nil
	}
	value, err := ParseCustomField(typeMediaIDs, raw)
	if err != nil {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// LastUpdatedAt returns the legacy system's last-updated timestamp, an
// ISO 8601 string in the source, or nil.
func (r Resource) LastUpdatedAt() *time.Time {
	raw := r.custom(fieldLastUpdated)
	if raw == "" {
		return nil
	}
	value, err := ParseCustomField(typeLastUpdated, raw)
	if err != nil || value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

// epochField reads an integer seconds-since-epoch field which the CDB may
// deliver as either a JSON number or a string.
func (r Resource) epochField(name string) int64 {
	switch v := r[name].(type) {
	case float64:
		return int64(v)
	case string:
		secs, _ := strconv.ParseInt(v, 10, 64)
		return secs
	}
	return 0
}

// PosterWidths are the poster image widths the delivery CDN renders.
var PosterWidths = []int{320, 480, 640, 720, 1280, 1920}

// Sources returns the encoded streams of a delivery video resource.
// Entries without a file URL are skipped.
func (r Resource) Sources() []domain.Source {
	raw, _ := r["sources"].([]any)
	var out []domain.Source
	for _, entry := range raw {
		src, _ := entry.(map[string]any)
		if src == nil {
			continue
		}
		url, _ := src["file"].(string)
		if url == "" {
			continue
		}
		mime, _ := src["type"].(string)
		out = append(out, domain.Source{
			MimeType: mime,
			URL:      url,
			Width:    intField(src["width"]),
			Height:   intField(src["height"]),
		})
	}
	return out
}

// BestSource picks the best source matching the constraints. An empty mime
// type or a zero width/height leaves that dimension unconstrained. Video
// streams beat audio streams, then the tallest stream wins. Returns nil
// when nothing matches.
func (r Resource) BestSource(mimeType string, width, height int) *domain.Source {
	var best *domain.Source
	for _, s := range r.Sources() {
		s := s
		if mimeType != "" && s.MimeType != mimeType {
			continue
		}
		if width != 0 && s.Width != width {
			continue
		}
		if height != 0 && s.Height != height {
			continue
		}
		if best == nil || betterSource(&s, best) {
			best = &s
		}
	}
	return best
}

func betterSource(a, b *domain.Source) bool {
	aVideo := strings.HasPrefix(a.MimeType, "video/")
	bVideo := strings.HasPrefix(b.MimeType, "video/")
	if aVideo != bVideo {
		return aVideo
	}
	return a.Height > b.Height
}

// PosterURL builds the delivery URL of the resource's poster image at the
// given width. Only the widths in PosterWidths are rendered; anything else
// fails validation.
func (r Resource) PosterURL(baseURL string, width int) (string, error) {
	if !slices.Contains(PosterWidths, width) {
		return "", fmt.Errorf("poster width %d: %w", width, domain.ErrValidation)
	}
	return fmt.Sprintf("%s/thumbs/%s-%d.jpg", strings.TrimSuffix(baseURL, "/"), r.Key(), width), nil
}

// intField reads an integer the source document may deliver as a JSON
// number or a string.
func intField(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

// CreatedBy returns the crsid which created the media on the legacy system.
// The field appears under two historic names; both are accepted.
func (r Resource) CreatedBy() string {
	if raw := r.custom(fieldCreatedBy); raw != "" {
		if value, err := ParseCustomField(typeCreatedBy, raw); err == nil {
			return value
		}
	}
	if raw := r.custom(fieldCreator); raw != "" {
		if value, err := ParseCustomField(typeCreator, raw); err == nil {
			return value
		}
	}
	return ""
}
