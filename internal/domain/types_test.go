package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamTypeCoversAllFourProviderKinds(t *testing.T) {
	assert.Equal(t, StreamType("feed"), StreamTypeFeed)
	assert.Equal(t, StreamType("saved_items"), StreamTypeSavedItems)
	assert.Equal(t, StreamType("collection"), StreamTypeCollection)
	assert.Equal(t, StreamType("community"), StreamTypeCommunity)
}

func TestCollectionCarriesAllEssentialAttributes(t *testing.T) {
	desc := "weekend reading"
	icon := "book"
	owner := "ada"
	count := 3
	c := Collection{
		ID:          "rss:folder-1",
		Name:        "Weekend",
		ProviderID:  "rss",
		Description: &desc,
		Icon:        &icon,
		ItemCount:   &count,
		Editable:    true,
		Owner:       &owner,
	}
	assert.Equal(t, "weekend reading", *c.Description)
	assert.Equal(t, "book", *c.Icon)
	assert.Equal(t, 3, *c.ItemCount)
	assert.True(t, c.Editable)
	assert.Equal(t, "ada", *c.Owner)
}

func TestNewStreamIDAndNewFeedIDShareTheStreamsStringSpace(t *testing.T) {
	sid := NewStreamID("rss", "feed", "hn")
	fid := NewFeedID("rss", "hn")
	assert.Equal(t, string(sid), string(fid), "a feed's FeedID and its backing Stream's StreamID must agree")
}

func TestNewItemID(t *testing.T) {
	assert.Equal(t, ItemID("email:msg-1"), NewItemID("email", "msg-1"))
}

func TestCollectionIDProviderID(t *testing.T) {
	assert.Equal(t, "rss", CollectionID("rss:folder-1").ProviderID())
	assert.Equal(t, "", CollectionID("no-separator").ProviderID())
}

func TestItemMarshalJSONPreservesFlagsAndMetadata(t *testing.T) {
	it := Item{
		ID:       "p:1",
		StreamID: "p:feed:x",
		Title:    "t",
		Content:  TextContent{Body: "hi"},
		IsRead:   true,
		IsSaved:  true,
		Tags:     []string{"a", "b"},
		Metadata: map[string]string{"k": "v"},
	}
	raw, err := it.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var got Item
	if err := got.UnmarshalJSON(raw); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, it.IsRead, got.IsRead)
	assert.Equal(t, it.IsSaved, got.IsSaved)
	assert.Equal(t, it.Tags, got.Tags)
	assert.Equal(t, it.Metadata, got.Metadata)
}
