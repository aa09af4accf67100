// Package domain holds the core aggregation types shared by every stream
// provider, the cache, the unified views and the RPC boundary.
package domain

import "fmt"

// StreamID identifies a single stream within a provider, e.g. "email:inbox:gmail".
type StreamID string

// NewStreamID builds a namespaced stream identifier from its parts.
func NewStreamID(providerID, kind, name string) StreamID {
	return StreamID(fmt.Sprintf("%s:%s:%s", providerID, kind, name))
}

// ItemID identifies a single item within a provider, e.g. "email:msg-001".
type ItemID string

// NewItemID builds a namespaced item identifier from its parts.
func NewItemID(providerID, localID string) ItemID {
	return ItemID(fmt.Sprintf("%s:%s", providerID, localID))
}

// FeedID identifies a single feed within a provider, e.g. "rss:feed:hn".
// Feeds are a kind of Stream, so a FeedID and the StreamID of the Stream it
// names share the same underlying string — the distinct type exists so a
// FeedProvider's interface cannot be called with the id of a non-feed
// stream (a collection or saved-items stream) by accident.
type FeedID string

// NewFeedID builds a namespaced feed identifier from its parts.
func NewFeedID(providerID, name string) FeedID {
	return FeedID(fmt.Sprintf("%s:feed:%s", providerID, name))
}

// CollectionID identifies a collection, conventionally "<provider>:<local-id>".
type CollectionID string

// ProviderID returns the provider segment of a collection ID, or "" if the ID
// has no namespace separator.
func (c CollectionID) ProviderID() string {
	for i := 0; i < len(c); i++ {
		if c[i] == ':' {
			return string(c[:i])
		}
	}
	return ""
}
