package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identified is any value that carries a principal id, such as an
// auth.Principal or a *models.User.
type Identified interface {
	RecipientID() string
}

// RecipientRef addresses a notification target. It holds either a bare id or
// a value carrying one; Normalize is the single place both forms are reduced
// to a plain id.
type RecipientRef struct {
	id     string
	holder Identified
}

// RecipientByID addresses a recipient by its id.
func RecipientByID(id string) RecipientRef {
	return RecipientRef{id: id}
}

// RecipientOf addresses the principal carried by v.
func RecipientOf(v Identified) RecipientRef {
	return RecipientRef{holder: v}
}

// Normalize returns the canonical recipient id or ErrInvalidRecipient when the
// reference is empty or not a UUID.
func (r RecipientRef) Normalize() (string, error) {
	raw := r.id
	if r.holder != nil {
		raw = r.holder.RecipientID()
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalidRecipient)
	}

	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
	}
	return parsed.String(), nil
}

// String renders the raw reference for logging.
func (r RecipientRef) String() string {
	if r.holder != nil {
		return r.holder.RecipientID()
	}
	return r.id
}
