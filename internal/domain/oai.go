package domain

import (
	"time"

	"github.com/google/uuid"
)

// OAIRepository is an OAI-PMH repository configured for harvesting.
type OAIRepository struct {
	ID  uuid.UUID
	URL string

	// BasicAuthUser enables HTTP basic auth when non-empty.
	BasicAuthUser     string
	BasicAuthPassword string

	LastHarvestedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OAIMetadataFormat is a metadata format supported by a repository. The
// identifier (metadata prefix) is unique within a repository.
type OAIMetadataFormat struct {
	ID           uuid.UUID
	RepositoryID uuid.UUID
	Identifier   string
	Namespace    string
	Schema       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OAIRecord is a harvested record. (identifier, metadata format, datestamp)
// is unique within a repository per OAI-PMH §2.5.
type OAIRecord struct {
	ID               uuid.UUID
	Identifier       string
	MetadataFormatID uuid.UUID
	Datestamp        time.Time

	// XML is the raw record exactly as returned by the repository.
	XML string

	HarvestedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MatterhornRecord is the parsed specialisation of an OAIRecord in the
// Matterhorn (Opencast) mediapackage namespace.
type MatterhornRecord struct {
	ID          uuid.UUID
	RecordID    uuid.UUID
	Title       string
	Description string
	SeriesID    *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Series is an Opencast series grouping lecture-capture recordings. Binding
// a playlist to a series causes its tracks to be ingested as media items
// which inherit the series' view defaults.
type Series struct {
	ID           uuid.UUID
	RepositoryID uuid.UUID

	// Identifier is the series id from the mediapackage. Empty for records
	// with no series element.
	Identifier string

	Title      string
	PlaylistID *string

	ViewIsPublic     bool
	ViewIsSignedIn   bool
	ViewCRSIDs       []string
	ViewLookupGroups []string
	ViewLookupInsts  []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Track is a single downloadable stream within a Matterhorn record.
type Track struct {
	ID                 uuid.UUID
	MatterhornRecordID uuid.UUID

	// Identifier is unique within the parent record.
	Identifier string

	URL string
	XML string

	MediaItemID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
