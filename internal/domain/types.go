package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// StreamType classifies what a stream's items represent.
type StreamType string

const (
	StreamTypeFeed       StreamType = "feed"
	StreamTypeSavedItems StreamType = "saved_items"
	StreamTypeCollection StreamType = "collection"
	StreamTypeCommunity  StreamType = "community"
)

// Stream describes a single pollable feed of items exposed by a provider.
type Stream struct {
	ID           StreamID          `json:"id" db:"id"`
	Name         string            `json:"name" db:"name"`
	ProviderID   string            `json:"provider_id" db:"provider_id"`
	Type         StreamType        `json:"stream_type" db:"stream_type"`
	Icon         *string           `json:"icon,omitempty" db:"icon"`
	UnreadCount  *int              `json:"unread_count,omitempty" db:"unread_count"`
	TotalCount   *int              `json:"total_count,omitempty" db:"total_count"`
	LastUpdated  *time.Time        `json:"last_updated,omitempty" db:"last_updated"`
	Metadata     map[string]string `json:"metadata,omitempty" db:"-"`
}

// Author identifies who produced an item.
type Author struct {
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	URL       *string `json:"url,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Item is a single unit of content surfaced by a stream.
type Item struct {
	ID           ItemID          `json:"id" db:"id"`
	StreamID     StreamID        `json:"stream_id" db:"stream_id"`
	Title        string          `json:"title" db:"title"`
	Content      ItemContent     `json:"content" db:"-"`
	Author       *Author         `json:"author,omitempty" db:"-"`
	Published    *time.Time      `json:"published,omitempty" db:"published"`
	Updated      *time.Time      `json:"updated,omitempty" db:"updated"`
	URL          *string         `json:"url,omitempty" db:"url"`
	ThumbnailURL *string         `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	IsRead       bool            `json:"is_read" db:"is_read"`
	IsSaved      bool            `json:"is_saved" db:"is_saved"`
	IsArchived   bool            `json:"is_archived" db:"is_archived"`
	Tags         []string        `json:"tags,omitempty" db:"-"`
	Metadata     map[string]string `json:"metadata,omitempty" db:"-"`
}

// itemAlias mirrors Item but swaps Content for a raw envelope so encoding/json
// can marshal/unmarshal the tagged union without a custom MarshalJSON on Item
// itself reaching into every field.
type itemAlias struct {
	ID           ItemID            `json:"id"`
	StreamID     StreamID          `json:"stream_id"`
	Title        string            `json:"title"`
	Content      contentEnvelope   `json:"content"`
	Author       *Author           `json:"author,omitempty"`
	Published    *time.Time        `json:"published,omitempty"`
	Updated      *time.Time        `json:"updated,omitempty"`
	URL          *string           `json:"url,omitempty"`
	ThumbnailURL *string           `json:"thumbnail_url,omitempty"`
	IsRead       bool              `json:"is_read"`
	IsSaved      bool              `json:"is_saved"`
	IsArchived   bool              `json:"is_archived"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON wraps Content in its {"kind","value"} envelope.
func (it Item) MarshalJSON() ([]byte, error) {
	env, err := encodeContent(it.Content)
	if err != nil {
		return nil, fmt.Errorf("encode item %s content: %w", it.ID, err)
	}
	a := itemAlias{
		ID: it.ID, StreamID: it.StreamID, Title: it.Title, Content: env,
		Author: it.Author, Published: it.Published, Updated: it.Updated,
		URL: it.URL, ThumbnailURL: it.ThumbnailURL, IsRead: it.IsRead,
		IsSaved: it.IsSaved, IsArchived: it.IsArchived, Tags: it.Tags, Metadata: it.Metadata,
	}
	return json.Marshal(a)
}

// UnmarshalJSON restores Content from its envelope.
func (it *Item) UnmarshalJSON(data []byte) error {
	var a itemAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	content, err := decodeContent(a.Content)
	if err != nil {
		return fmt.Errorf("decode item %s content: %w", a.ID, err)
	}
	it.ID, it.StreamID, it.Title = a.ID, a.StreamID, a.Title
	it.Content = content
	it.Author, it.Published, it.Updated = a.Author, a.Published, a.Updated
	it.URL, it.ThumbnailURL = a.URL, a.ThumbnailURL
	it.IsRead, it.IsSaved, it.IsArchived = a.IsRead, a.IsSaved, a.IsArchived
	it.Tags, it.Metadata = a.Tags, a.Metadata
	return nil
}

// Collection groups items a provider's user has explicitly curated
// (a playlist, a starred folder, a saved-posts board, ...).
type Collection struct {
	ID          CollectionID `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	ProviderID  string       `json:"provider_id" db:"provider_id"`
	Description *string      `json:"description,omitempty" db:"description"`
	Icon        *string      `json:"icon,omitempty" db:"icon"`
	ItemCount   *int         `json:"item_count,omitempty" db:"item_count"`
	Editable    bool         `json:"editable" db:"editable"`
	Owner       *string      `json:"owner,omitempty" db:"owner"`
}
