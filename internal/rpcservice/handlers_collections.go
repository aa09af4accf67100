package rpcservice

import (
	"context"
	"encoding/json"

	"github.com/raibid-labs/scryhub/internal/apierrors"
	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
)

func init() {
	registerHandler("collections.list", handleCollectionsList)
	registerHandler("collections.items", handleCollectionsItems)
	registerHandler("collections.add_item", handleCollectionsAddItem)
	registerHandler("collections.remove_item", handleCollectionsRemoveItem)
	registerHandler("collections.create", handleCollectionsCreate)
}

func handleCollectionsList(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	return s.Views.GetAllCollections(ctx)
}

// collectionProviderFor resolves the provider that owns a namespaced
// collection ID ("<provider>:<local-id>") and asserts it implements
// CollectionProvider, per the provider's declared Capabilities().
func collectionProviderFor(s *Server, id domain.CollectionID) (provider.CollectionProvider, error) {
	providerID := id.ProviderID()
	p, ok := s.Registry.Get(providerID)
	if !ok {
		return nil, &domain.ProviderNotFoundError{ProviderID: providerID}
	}
	if !p.Capabilities().HasCollections {
		return nil, apierrors.New(apierrors.CodeCapabilityUnsupported, "provider "+providerID+" has no collections")
	}
	cp, ok := p.(provider.CollectionProvider)
	if !ok {
		return nil, apierrors.New(apierrors.CodeCapabilityUnsupported, "provider "+providerID+" has no collections")
	}
	return cp, nil
}

type collectionIDParams struct {
	CollectionID domain.CollectionID `json:"collection_id"`
}

func handleCollectionsItems(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var p collectionIDParams
	if err := json.Unmarshal(params, &p.CollectionID); err != nil {
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
	}
	cp, err := collectionProviderFor(s, p.CollectionID)
	if err != nil {
		return nil, err
	}
	return cp.GetCollectionItems(ctx, p.CollectionID)
}

type collectionItemParams struct {
	CollectionID domain.CollectionID `json:"collection_id"`
	ItemID       domain.ItemID       `json:"item_id"`
}

func handleCollectionsAddItem(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var p collectionItemParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	cp, err := collectionProviderFor(s, p.CollectionID)
	if err != nil {
		return nil, err
	}
	return nil, cp.AddToCollection(ctx, p.CollectionID, p.ItemID)
}

func handleCollectionsRemoveItem(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var p collectionItemParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	cp, err := collectionProviderFor(s, p.CollectionID)
	if err != nil {
		return nil, err
	}
	return nil, cp.RemoveFromCollection(ctx, p.CollectionID, p.ItemID)
}

type collectionsCreateParams struct {
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
}

func handleCollectionsCreate(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var p collectionsCreateParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, invalidParamsf("name is required")
	}
	prov, ok := s.Registry.Get(p.ProviderID)
	if !ok {
		return nil, &domain.ProviderNotFoundError{ProviderID: p.ProviderID}
	}
	if !prov.Capabilities().HasCollections {
		return nil, apierrors.New(apierrors.CodeCapabilityUnsupported, "provider "+p.ProviderID+" has no collections")
	}
	cp, ok := prov.(provider.CollectionProvider)
	if !ok {
		return nil, apierrors.New(apierrors.CodeCapabilityUnsupported, "provider "+p.ProviderID+" has no collections")
	}
	return cp.CreateCollection(ctx, p.Name)
}
