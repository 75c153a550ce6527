package catalogue

import (
	"context"
	"errors"
	"fmt"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// ChannelInput carries the caller-settable fields of a new channel.
type ChannelInput struct {
	BillingAccountID string
	Title            string
	Description      string
}

// ChannelUpdate is a partial update of a channel.
type ChannelUpdate struct {
	Title       *string
	Description *string
}

// CreateChannel creates a channel under a billing account the principal may
// create channels for. The creator's crsid is written into the new edit
// permission so they can manage what they made.
func (s *Service) CreateChannel(ctx context.Context, p domain.Principal, m domain.Membership, in ChannelInput) (*domain.Channel, error) {
	if p.IsAnonymous() {
		return nil, fmt.Errorf("create channel: %w", domain.ErrForbidden)
	}

	acct, err := s.accounts.GetByID(ctx, in.BillingAccountID)
	if err != nil {
		return nil, err
	}
	create, err := s.perms.GetCreateForAccount(ctx, acct.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	acct.ChannelCreatePermission = create
	if !s.eval.CanCreateChannels(p, m, acct) {
		return nil, fmt.Errorf("create channel under account %s: %w", acct.ID, domain.ErrForbidden)
	}

	ch := &domain.Channel{
		ID:               domain.NewToken(),
		Title:            in.Title,
		Description:      in.Description,
		BillingAccountID: in.BillingAccountID,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.channels.Create(ctx, ch); err != nil {
			return err
		}
		edit := domain.NewPermission()
		edit.AllowsEditChannelID = &ch.ID
		edit.CRSIDs = []string{p.Username}
		return s.perms.Create(ctx, &edit)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "channel created", "channel_id", ch.ID, "account_id", in.BillingAccountID, "user", p.Username)
	return ch, nil
}

// GetChannel returns a single channel. Channels are viewable by everyone;
// the annotation carries editability and the count of items the principal
// may see inside it.
func (s *Service) GetChannel(ctx context.Context, p domain.Principal, m domain.Membership, id string) (*domain.AnnotatedChannel, error) {
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	editable, err := s.channelEditable(ctx, p, m, ch)
	if err != nil {
		return nil, err
	}
	count, err := s.items.CountVisible(ctx, p, m, ch.ID)
	if err != nil {
		return nil, err
	}
	ch.ItemCount = count

	return &domain.AnnotatedChannel{Channel: *ch, Editable: editable}, nil
}

// ListChannels returns all live channels with editability annotations,
// optionally restricted to a full-text search over title and description.
func (s *Service) ListChannels(ctx context.Context, p domain.Principal, m domain.Membership, search string) ([]domain.AnnotatedChannel, error) {
	channels, err := s.channels.List(ctx, search)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AnnotatedChannel, len(channels))
	for i := range channels {
		editable, err := s.channelEditable(ctx, p, m, &channels[i])
		if err != nil {
			return nil, err
		}
		out[i] = domain.AnnotatedChannel{Channel: channels[i], Editable: editable}
	}
	return out, nil
}

// UpdateChannel applies a partial update to a channel the principal may
// edit.
func (s *Service) UpdateChannel(ctx context.Context, p domain.Principal, m domain.Membership, id string, in ChannelUpdate) (*domain.Channel, error) {
	ch, err := s.requireEditableChannel(ctx, p, m, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		ch.Title = *in.Title
	}
	if in.Description != nil {
		ch.Description = *in.Description
	}

	if err := s.channels.Update(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// DeleteChannel soft-deletes a channel the principal may edit. Items and
// playlists inside it stop being editable but are not themselves deleted.
func (s *Service) DeleteChannel(ctx context.Context, p domain.Principal, m domain.Membership, id string) error {
	if _, err := s.requireEditableChannel(ctx, p, m, id); err != nil {
		return err
	}
	if err := s.channels.Delete(ctx, id); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "channel deleted", "channel_id", id, "user", p.Username)
	return nil
}

// GetChannelEditPermission returns the channel's edit permission. Requires
// edit rights.
func (s *Service) GetChannelEditPermission(ctx context.Context, p domain.Principal, m domain.Membership, channelID string) (*domain.Permission, error) {
	ch, err := s.requireEditableChannel(ctx, p, m, channelID)
	if err != nil {
		return nil, err
	}
	if ch.EditPermission != nil {
		return ch.EditPermission, nil
	}
	return s.perms.GetEditForChannel(ctx, channelID)
}

// UpdateChannelEditPermission replaces the access fields of the channel's
// edit permission. A careless update can lock the caller out; that is
// allowed.
func (s *Service) UpdateChannelEditPermission(ctx context.Context, p domain.Principal, m domain.Membership, channelID string, in PermissionInput) (*domain.Permission, error) {
	if _, err := s.requireEditableChannel(ctx, p, m, channelID); err != nil {
		return nil, err
	}

	edit, err := s.perms.GetEditForChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	in.applyTo(edit)
	if err := s.perms.Update(ctx, edit); err != nil {
		return nil, err
	}
	return edit, nil
}

// requireEditableChannel loads a channel and fails with ErrForbidden unless
// the principal may edit it. Channels are public, so existence is never
// hidden.
func (s *Service) requireEditableChannel(ctx context.Context, p domain.Principal, m domain.Membership, id string) (*domain.Channel, error) {
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	editable, err := s.channelEditable(ctx, p, m, ch)
	if err != nil {
		return nil, err
	}
	if !editable {
		return nil, fmt.Errorf("edit channel %s: %w", id, domain.ErrForbidden)
	}
	return ch, nil
}
