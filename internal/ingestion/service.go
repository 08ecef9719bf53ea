package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/pulse-lab/project-pulse/internal/core/groups"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

type Service struct {
	store            storage.EventStore
	resolver         groups.Resolver
	maxBodySizeBytes int
}

func NewService(store storage.EventStore, resolver groups.Resolver, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if resolver == nil {
		panic("ingestion: resolver must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            store,
		resolver:         resolver,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.IngestHandler)
	r.GET("/v1/events/:participant_id", s.ListEventsHandler)
}
