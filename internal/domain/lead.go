package domain

import (
	"strings"
	"time"
)

// Lead is an inbound sales contact tracked by the portal.
type Lead struct {
	ID         string
	Name       string
	Source     string
	CreatedAt  time.Time
	ArchivedAt *time.Time
}

func NewLead(id, name, source string, now time.Time) (Lead, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	source = strings.TrimSpace(source)

	if id == "" {
		return Lead{}, ErrInvalidID
	}
	if name == "" {
		return Lead{}, ErrInvalidName
	}

	return Lead{
		ID:        id,
		Name:      name,
		Source:    source,
		CreatedAt: now.UTC(),
	}, nil
}

func (l *Lead) Archive(now time.Time) {
	ts := now.UTC()
	l.ArchivedAt = &ts
}
