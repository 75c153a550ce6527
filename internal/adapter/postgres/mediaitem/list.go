package mediaitem

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	postgres "github.com/uisautomation/mediaplatform/internal/adapter/postgres"
	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/perm"
)

type listRow struct {
	row
	Editable    bool `db:"editable"`
	CanDownload bool `db:"can_download"`
}

// List returns one page of media items visible to the principal, annotated
// with per-principal access flags. Visibility, search, ordering and
// pagination are all evaluated inside the database.
func (r *Repo) List(ctx context.Context, p domain.Principal, m domain.Membership, f domain.MediaItemFilter) (*domain.MediaItemPage, error) {
	if f.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %w", domain.ErrValidation)
	}

	orderCol, desc, err := ordering(f.Ordering)
	if err != nil {
		return nil, err
	}

	editable := editableCond(p, m)
	viewable := viewableCond(p, m, editable)
	downloadable := downloadableCond(p)

	where := sq.And{sq.Expr("mi.deleted_at IS NULL"), viewable}
	if f.ChannelID != nil {
		where = append(where, sq.Eq{"mi.channel_id": *f.ChannelID})
	}
	if f.PlaylistID != nil {
		where = append(where, sq.Expr(
			`mi.id = ANY (COALESCE((SELECT media_item_ids FROM playlists WHERE id = ? AND deleted_at IS NULL), '{}'))`,
			*f.PlaylistID))
	}
	if f.Search != "" {
		where = append(where, sq.Or{
			sq.Expr("mi.fts @@ plainto_tsquery('english', ?)", f.Search),
			sq.Expr("mi.tags @> ARRAY[lower(?)]::text[]", f.Search),
		})
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	page := &domain.MediaItemPage{}

	if f.IncludeCount {
		countSQL, args, err := builderFor(sq.Expr("COUNT(*)"), where).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build count query: %w", err)
		}
		var count int
		if err := pgxscan.Get(ctx, q, &count, countSQL, args...); err != nil {
			return nil, postgres.MapError(err, "media items", "")
		}
		page.Count = &count
	}

	pageWhere := where
	if f.Cursor != nil {
		c, err := decodeCursor(*f.Cursor)
		if err != nil {
			return nil, err
		}
		pageWhere = append(append(sq.And{}, where...), cursorCond(c, orderCol, desc))
	}

	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	columns := sq.Expr(`mi.id, mi.channel_id, mi.title, mi.description, mi.duration,
		mi.type, mi.published_at, mi.downloadable, mi.language, mi.copyright,
		mi.tags, mi.initially_fetched_from_url, mi.created_at, mi.updated_at, mi.deleted_at`)

	listSQL, args, err := builderFor(columns, pageWhere).
		Column(sq.Alias(editable, "editable")).
		Column(sq.Alias(downloadable, "can_download")).
		OrderBy(orderCol+" "+dir+" NULLS LAST", "mi.id").
		Limit(uint64(f.Limit + 1)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var rows []listRow
	if err := pgxscan.Select(ctx, q, &rows, listSQL, args...); err != nil {
		return nil, postgres.MapError(err, "media items", "")
	}

	hasMore := len(rows) > f.Limit
	if hasMore {
		rows = rows[:f.Limit]
	}

	page.Items = make([]domain.AnnotatedMediaItem, len(rows))
	for i, row := range rows {
		page.Items[i] = domain.AnnotatedMediaItem{
			MediaItem:          row.toDomain(),
			Viewable:           true,
			Editable:           row.Editable,
			DownloadableByUser: row.CanDownload,
		}
	}

	if hasMore {
		last := page.Items[len(page.Items)-1]
		c := cursor{id: last.ID}
		switch orderCol {
		case "mi.published_at":
			c.key = last.PublishedAt
		case "mi.updated_at":
			t := last.UpdatedAt
			c.key = &t
		}
		next := encodeCursor(c)
		page.NextCursor = &next
	}

	return page, nil
}

// CountVisible returns the number of live items in the channel which the
// principal may view. Used to annotate channel detail responses.
func (r *Repo) CountVisible(ctx context.Context, p domain.Principal, m domain.Membership, channelID string) (int, error) {
	where := sq.And{
		sq.Expr("mi.deleted_at IS NULL"),
		sq.Eq{"mi.channel_id": channelID},
		viewableCond(p, m, editableCond(p, m)),
	}

	countSQL, args, err := builderFor(sq.Expr("COUNT(*)"), where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	var count int
	if err := pgxscan.Get(ctx, q, &count, countSQL, args...); err != nil {
		return 0, postgres.MapError(err, "media items", "")
	}
	return count, nil
}

func builderFor(columns sq.Sqlizer, where sq.And) sq.SelectBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select().Column(columns).
		From("media_items mi").
		LeftJoin("permissions vp ON vp.allows_view_item_id = mi.id").
		LeftJoin("permissions ep ON ep.allows_edit_channel_id = mi.channel_id").
		LeftJoin("legacy_items li ON li.item_id = mi.id").
		LeftJoin("video_links vl ON vl.item_id = mi.id").
		LeftJoin("cached_resources cr ON cr.type = 'video' AND cr.key = vl.key AND cr.deleted_at IS NULL").
		Where(where)
}

func ordering(o domain.Ordering) (col string, desc bool, err error) {
	switch o {
	case "", domain.OrderPublishedAtDesc:
		return "mi.published_at", true, nil
	case domain.OrderPublishedAtAsc:
		return "mi.published_at", false, nil
	case domain.OrderUpdatedAtDesc:
		return "mi.updated_at", true, nil
	case domain.OrderUpdatedAtAsc:
		return "mi.updated_at", false, nil
	default:
		return "", false, fmt.Errorf("unknown ordering %q: %w", o, domain.ErrValidation)
	}
}

// editableCond mirrors Evaluator.ItemEditable: edit rights flow through the
// containing channel and legacy-linked items are locked.
func editableCond(p domain.Principal, m domain.Membership) sq.Sqlizer {
	if p.HasCapability(perm.CapEditItem) {
		return perm.Always()
	}
	return sq.And{
		sq.Expr("mi.channel_id IS NOT NULL"),
		sq.Expr("li.id IS NULL"),
		perm.Condition("ep", p, m),
	}
}

// viewableCond mirrors Evaluator.ItemViewable. Deletion is excluded by the
// caller's WHERE clause, so the capability case reduces to TRUE.
func viewableCond(p domain.Principal, m domain.Membership, editable sq.Sqlizer) sq.Sqlizer {
	if p.HasCapability(perm.CapViewItem) {
		return perm.Always()
	}
	published := sq.Expr("(mi.published_at IS NULL OR mi.published_at <= now())")
	// An item is ready when it has no delivery backend resource or the
	// cached resource is not erroring.
	ready := sq.Expr("(cr.key IS NULL OR COALESCE(cr.data->>'status', '') <> 'error')")
	return sq.Or{
		editable,
		sq.And{perm.Condition("vp", p, m), published, ready},
	}
}

func downloadableCond(p domain.Principal) sq.Sqlizer {
	if p.HasCapability(perm.CapDownloadItem) {
		return perm.Always()
	}
	return sq.Expr("mi.downloadable")
}

// cursorCond builds the keyset predicate selecting rows strictly after the
// cursor position under "col dir NULLS LAST, mi.id" ordering.
func cursorCond(c cursor, col string, desc bool) sq.Sqlizer {
	if c.key == nil {
		// Inside the NULL tail; only the id tiebreak remains.
		return sq.And{
			sq.Expr(col + " IS NULL"),
			sq.Expr("mi.id > ?", c.id),
		}
	}

	cmp := ">"
	if desc {
		cmp = "<"
	}
	return sq.Or{
		sq.Expr(col+" "+cmp+" ?", *c.key),
		sq.And{sq.Expr(col+" = ?", *c.key), sq.Expr("mi.id > ?", c.id)},
		sq.Expr(col + " IS NULL"),
	}
}
