package mediaitem

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// cursor is a keyset pagination position: the ordering column value and id
// of the last row of the previous page. key is nil when the ordering column
// was NULL for that row.
type cursor struct {
	key *time.Time
	id  string
}

func encodeCursor(c cursor) string {
	key := ""
	if c.key != nil {
		key = strconv.FormatInt(c.key.UnixNano(), 10)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(key + "|" + c.id))
}

func decodeCursor(raw string) (cursor, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return cursor{}, fmt.Errorf("bad cursor: %w", domain.ErrValidation)
	}

	key, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return cursor{}, fmt.Errorf("bad cursor: %w", domain.ErrValidation)
	}

	c := cursor{id: id}
	if key != "" {
		nanos, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return cursor{}, fmt.Errorf("bad cursor: %w", domain.ErrValidation)
		}
		t := time.Unix(0, nanos).UTC()
		c.key = &t
	}
	return c, nil
}
