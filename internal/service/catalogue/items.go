package catalogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// ItemInput carries the caller-settable fields of a new media item.
type ItemInput struct {
	ChannelID   string
	Title       string
	Description string
	Type        domain.MediaType
	PublishedAt *time.Time

	Downloadable bool
	Language     string
	Copyright    string
	Tags         []string
}

// ItemUpdate is a partial update of a media item. Nil fields are left
// unchanged.
type ItemUpdate struct {
	Title       *string
	Description *string
	PublishedAt **time.Time

	Downloadable *bool
	Language     *string
	Copyright    *string
	Tags         []string
}

// CreateItem creates a media item inside a channel the principal may edit,
// together with its blank view and edit permissions. Nobody but channel
// editors can see the item until the view permission is widened.
func (s *Service) CreateItem(ctx context.Context, p domain.Principal, m domain.Membership, in ItemInput) (*domain.MediaItem, error) {
	if p.IsAnonymous() {
		return nil, fmt.Errorf("create item: %w", domain.ErrForbidden)
	}

	ch, err := s.channels.GetByID(ctx, in.ChannelID)
	if err != nil {
		return nil, err
	}
	editable, err := s.channelEditable(ctx, p, m, ch)
	if err != nil {
		return nil, err
	}
	if !editable {
		return nil, fmt.Errorf("create item in channel %s: %w", ch.ID, domain.ErrForbidden)
	}

	if err := domain.ValidateTags(in.Tags); err != nil {
		return nil, err
	}

	typ := in.Type
	if typ == "" {
		typ = domain.MediaTypeUnknown
	}

	item := &domain.MediaItem{
		ID:           domain.NewToken(),
		ChannelID:    &in.ChannelID,
		Title:        in.Title,
		Description:  in.Description,
		Type:         typ,
		PublishedAt:  in.PublishedAt,
		Downloadable: in.Downloadable,
		Language:     in.Language,
		Copyright:    in.Copyright,
		Tags:         domain.NormalizeTags(in.Tags),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.items.Create(ctx, item); err != nil {
			return err
		}
		view := domain.NewPermission()
		view.AllowsViewItemID = &item.ID
		if err := s.perms.Create(ctx, &view); err != nil {
			return err
		}
		// The item-level edit permission is stored as a hook for per-item
		// overrides; edit decisions route through the channel.
		edit := domain.NewPermission()
		edit.AllowsEditItemID = &item.ID
		return s.perms.Create(ctx, &edit)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "item created", "item_id", item.ID, "channel_id", in.ChannelID, "user", p.Username)
	s.publishItem(ctx, item.ID)
	return item, nil
}

// GetItem returns a single media item with per-principal access flags.
// Items the principal may not view report as not found.
func (s *Service) GetItem(ctx context.Context, p domain.Principal, m domain.Membership, id string) (*domain.AnnotatedMediaItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view, err := s.perms.GetViewForItem(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	item.ViewPermission = view

	edit, err := s.perms.GetEditForItem(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	item.EditPermission = edit

	editable, err := s.itemEditable(ctx, p, m, item)
	if err != nil {
		return nil, err
	}
	ready, err := s.itemReady(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.eval.ItemViewable(p, m, item, editable, ready) {
		return nil, fmt.Errorf("media item %s: %w", id, domain.ErrNotFound)
	}

	return &domain.AnnotatedMediaItem{
		MediaItem:          *item,
		Viewable:           true,
		Editable:           editable,
		DownloadableByUser: s.eval.ItemDownloadable(p, item),
	}, nil
}

// ListItems returns a page of media items visible to the principal. When
// filtering by playlist, a playlist the principal may not view yields an
// empty page rather than an error.
func (s *Service) ListItems(ctx context.Context, p domain.Principal, m domain.Membership, f domain.MediaItemFilter) (*domain.MediaItemPage, error) {
	if f.PlaylistID != nil {
		visible, err := s.playlistVisible(ctx, p, m, *f.PlaylistID)
		if err != nil {
			return nil, err
		}
		if !visible {
			page := &domain.MediaItemPage{Items: []domain.AnnotatedMediaItem{}}
			if f.IncludeCount {
				zero := 0
				page.Count = &zero
			}
			return page, nil
		}
	}
	return s.items.List(ctx, p, m, f)
}

// UpdateItem applies a partial update to an item the principal may edit.
func (s *Service) UpdateItem(ctx context.Context, p domain.Principal, m domain.Membership, id string, in ItemUpdate) (*domain.MediaItem, error) {
	item, err := s.requireEditableItem(ctx, p, m, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		item.Title = *in.Title
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.PublishedAt != nil {
		item.PublishedAt = *in.PublishedAt
	}
	if in.Downloadable != nil {
		item.Downloadable = *in.Downloadable
	}
	if in.Language != nil {
		item.Language = *in.Language
	}
	if in.Copyright != nil {
		item.Copyright = *in.Copyright
	}
	if in.Tags != nil {
		if err := domain.ValidateTags(in.Tags); err != nil {
			return nil, err
		}
		item.Tags = domain.NormalizeTags(in.Tags)
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}

	s.publishItem(ctx, item.ID)
	return item, nil
}

// DeleteItem soft-deletes an item the principal may edit.
func (s *Service) DeleteItem(ctx context.Context, p domain.Principal, m domain.Membership, id string) error {
	if _, err := s.requireEditableItem(ctx, p, m, id); err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "item deleted", "item_id", id, "user", p.Username)
	s.publishItem(ctx, id)
	return nil
}

// GetItemViewPermission returns the item's view permission. Requires edit
// rights: the access list itself is not public information.
func (s *Service) GetItemViewPermission(ctx context.Context, p domain.Principal, m domain.Membership, itemID string) (*domain.Permission, error) {
	if _, err := s.requireEditableItem(ctx, p, m, itemID); err != nil {
		return nil, err
	}
	return s.perms.GetViewForItem(ctx, itemID)
}

// UpdateItemViewPermission replaces the access fields of the item's view
// permission.
func (s *Service) UpdateItemViewPermission(ctx context.Context, p domain.Principal, m domain.Membership, itemID string, in PermissionInput) (*domain.Permission, error) {
	if _, err := s.requireEditableItem(ctx, p, m, itemID); err != nil {
		return nil, err
	}

	view, err := s.perms.GetViewForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	in.applyTo(view)
	if err := s.perms.Update(ctx, view); err != nil {
		return nil, err
	}

	s.publishItem(ctx, itemID)
	return view, nil
}

// GetUploadEndpoint returns the item's live upload endpoint, if any.
// Requires edit rights on the item.
func (s *Service) GetUploadEndpoint(ctx context.Context, p domain.Principal, m domain.Membership, itemID string) (*domain.UploadEndpoint, error) {
	if _, err := s.requireEditableItem(ctx, p, m, itemID); err != nil {
		return nil, err
	}
	return s.endpoints.GetLiveForItem(ctx, itemID)
}

// requireEditableItem loads an item and fails unless the principal may edit
// it. Items the principal may not even view report as not found so that
// edit attempts do not leak existence.
func (s *Service) requireEditableItem(ctx context.Context, p domain.Principal, m domain.Membership, id string) (*domain.MediaItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	editable, err := s.itemEditable(ctx, p, m, item)
	if err != nil {
		return nil, err
	}
	if editable {
		return item, nil
	}

	view, err := s.perms.GetViewForItem(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	item.ViewPermission = view
	if s.eval.ItemViewable(p, m, item, false, true) {
		return nil, fmt.Errorf("edit media item %s: %w", id, domain.ErrForbidden)
	}
	return nil, fmt.Errorf("media item %s: %w", id, domain.ErrNotFound)
}
