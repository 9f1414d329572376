package domain

import (
	"strings"
	"time"
)

// Project groups tasks under one client.
type Project struct {
	ID         string
	ClientID   string
	Name       string
	CreatedAt  time.Time
	ArchivedAt *time.Time
}

func NewProject(id, clientID, name string, now time.Time) (Project, error) {
	id = strings.TrimSpace(id)
	clientID = strings.TrimSpace(clientID)
	name = strings.TrimSpace(name)

	if id == "" {
		return Project{}, ErrInvalidID
	}
	if clientID == "" {
		return Project{}, ErrInvalidID
	}
	if name == "" {
		return Project{}, ErrInvalidName
	}

	return Project{
		ID:        id,
		ClientID:  clientID,
		Name:      name,
		CreatedAt: now.UTC(),
	}, nil
}

func (p *Project) Archive(now time.Time) {
	ts := now.UTC()
	p.ArchivedAt = &ts
}
