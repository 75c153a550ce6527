package oaipmh

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Mediapackage is the parsed Opencast mediapackage metadata of a record.
type Mediapackage struct {
	Title       string
	Description string
	Series      string
	SeriesTitle string
	Tracks      []MediapackageTrack
}

// MediapackageTrack is one track element of a mediapackage.
type MediapackageTrack struct {
	ID   string
	Type string
	URL  string

	// XML is the serialised track element.
	XML string
}

type rawMediapackage struct {
	Title       string     `xml:"title"`
	Description string     `xml:"description"`
	Series      string     `xml:"series"`
	SeriesTitle string     `xml:"seriestitle"`
	Tracks      []rawTrack `xml:"media>track"`
}

type rawTrack struct {
	ID    string `xml:"id,attr"`
	Type  string `xml:"type,attr"`
	URL   string `xml:"url"`
	Inner string `xml:",innerxml"`
}

type recordMetadata struct {
	Mediapackage *rawMediapackage `xml:"metadata>mediapackage"`
}

// ParseMediapackage extracts the mediapackage from a harvested record's
// XML. Element names are matched without namespace qualification since
// repositories differ in how they declare the mediapackage namespace.
func ParseMediapackage(recordXML string) (*Mediapackage, error) {
	var rec recordMetadata
	if err := xml.Unmarshal([]byte(recordXML), &rec); err != nil {
		return nil, fmt.Errorf("parse mediapackage: %w", err)
	}
	if rec.Mediapackage == nil {
		return nil, fmt.Errorf("parse mediapackage: record has no mediapackage element")
	}

	mp := &Mediapackage{
		Title:       strings.TrimSpace(rec.Mediapackage.Title),
		Description: strings.TrimSpace(rec.Mediapackage.Description),
		Series:      strings.TrimSpace(rec.Mediapackage.Series),
		SeriesTitle: strings.TrimSpace(rec.Mediapackage.SeriesTitle),
	}
	for _, t := range rec.Mediapackage.Tracks {
		mp.Tracks = append(mp.Tracks, MediapackageTrack{
			ID:   t.ID,
			Type: t.Type,
			URL:  strings.TrimSpace(t.URL),
			XML:  fmt.Sprintf("<track id=%q type=%q>%s</track>", t.ID, t.Type, t.Inner),
		})
	}
	return mp, nil
}
