package service

import (
	"context"

	"pipeline-chat-be/internal/dto"
	"pipeline-chat-be/pkg/catalog"
)

type ICatalogService interface {
	GetAllConnectors(ctx context.Context) []*dto.ConnectorResponse
}

type catalogService struct {
	registry *catalog.Registry
}

func NewCatalogService(registry *catalog.Registry) ICatalogService {
	return &catalogService{registry: registry}
}

func (cs *catalogService) GetAllConnectors(_ context.Context) []*dto.ConnectorResponse {
	connectors := cs.registry.All()
	out := make([]*dto.ConnectorResponse, len(connectors))
	for i, c := range connectors {
		out[i] = &dto.ConnectorResponse{
			Name:           c.Name,
			Category:       string(c.Category),
			RequiredFields: c.RequiredFields,
		}
	}
	return out
}
