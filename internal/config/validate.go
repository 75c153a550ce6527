package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Lookup.validate(); err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	if err := c.CDB.validate(); err != nil {
		return fmt.Errorf("cdb: %w", err)
	}
	if err := c.OAI.validate(); err != nil {
		return fmt.Errorf("oai: %w", err)
	}
	if err := c.Query.validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}

func (l *LookupConfig) validate() error {
	if !strings.HasSuffix(l.Root, "/") {
		l.Root += "/"
	}
	if _, err := url.Parse(l.Root); err != nil {
		return fmt.Errorf("invalid root %q: %w", l.Root, err)
	}
	if l.PeopleIDScheme == "" {
		return fmt.Errorf("people_id_scheme must not be empty")
	}
	return nil
}

func (c *CDBConfig) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http(s), got %q", c.BaseURL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be > 0 (got %d)", c.PageSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries)
	}
	return nil
}

func (o *OAIConfig) validate() error {
	o.TrackTypes = splitList(o.TrackTypesRaw)
	if len(o.TrackTypes) == 0 {
		return fmt.Errorf("track_types must name at least one track type")
	}
	return nil
}

func (q *QueryConfig) validate() error {
	if q.PageSize <= 0 {
		return fmt.Errorf("page_size must be > 0 (got %d)", q.PageSize)
	}
	if q.MaxPageSize < q.PageSize {
		return fmt.Errorf("max_page_size must be >= page_size (got %d < %d)", q.MaxPageSize, q.PageSize)
	}
	return nil
}
