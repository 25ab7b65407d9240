package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

func (s *Service) AddContact(ctx context.Context, ownerID, targetUsername string) (*models.Contact, error) {
	if strings.TrimSpace(targetUsername) == "" {
		return nil, ErrMissingUsername
	}
	target, err := s.store.GetUserByUsername(ctx, targetUsername)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRecipientNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up contact user: %w", err)
	}
	if target.ID == ownerID {
		return nil, ErrSelfContactNotAllowed
	}

	exists, err := s.store.ContactExists(ctx, ownerID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check contact: %w", err)
	} else if exists {
		return nil, ErrContactAlreadyExists
	}

	contact := &models.Contact{
		OwnerID:   ownerID,
		ContactID: target.ID,
		Username:  target.Username,
	}
	if target.ProfileImage != nil {
		contact.ProfileImage = *target.ProfileImage
	}
	err = s.store.CreateContact(ctx, contact)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrContactAlreadyExists
	} else if err != nil {
		return nil, fmt.Errorf("failed to save contact: %w", err)
	}
	return contact, nil
}

func (s *Service) RemoveContact(ctx context.Context, ownerID, contactID string) error {
	err := s.store.DeleteContact(ctx, ownerID, contactID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrContactNotFound
	} else if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return nil
}

func (s *Service) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	contacts, err := s.store.ListContacts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}
