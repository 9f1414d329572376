package domain

import (
	"strings"
	"time"
)

// Client is a billing/ownership entity that projects belong to.
type Client struct {
	ID         string
	Name       string
	CreatedAt  time.Time
	ArchivedAt *time.Time
}

func NewClient(id, name string, now time.Time) (Client, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Client{}, ErrInvalidID
	}
	if name == "" {
		return Client{}, ErrInvalidName
	}
	return Client{
		ID:        id,
		Name:      name,
		CreatedAt: now.UTC(),
	}, nil
}

func (c *Client) Archive(now time.Time) {
	ts := now.UTC()
	c.ArchivedAt = &ts
}
