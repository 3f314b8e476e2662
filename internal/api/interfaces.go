package api

import (
	"context"
	"net/http"

	"docs-editor/internal/models"
	"docs-editor/internal/services/collaboration"
)

// Consumer-driven interfaces: handlers declare only what they call.

// DocumentService defines what handlers need from the document service
type DocumentService interface {
	Create(ctx context.Context, who *models.Identity, in *models.DocumentCreate) (*models.Document, error)
	List(ctx context.Context, who *models.Identity) ([]*models.Document, error)
	Get(ctx context.Context, who *models.Identity, id string) (*models.Document, error)
	Update(ctx context.Context, who *models.Identity, id string, in *models.DocumentUpdate) (*models.Document, error)
	Delete(ctx context.Context, who *models.Identity, id string) error
	Share(ctx context.Context, who *models.Identity, id string, in *models.ShareRequest) (*models.Document, error)
	RemoveAccess(ctx context.Context, who *models.Identity, id, email string) (*models.Document, error)
	AddComment(ctx context.Context, who *models.Identity, id string, in *models.CommentCreate) ([]models.Comment, error)
	DeleteComment(ctx context.Context, who *models.Identity, id, commentID string) ([]models.Comment, error)
	Versions(ctx context.Context, who *models.Identity, id string) ([]models.Version, error)
	RestoreVersion(ctx context.Context, who *models.Identity, id, versionID string) (*models.Document, error)
	Presence(ctx context.Context, who *models.Identity, id string) ([]models.UserDescriptor, error)
}

// RealtimeHandler accepts collaboration websocket connections
type RealtimeHandler interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
	HandleDocumentConnection(w http.ResponseWriter, r *http.Request)
}

// SessionStats reports live collaboration counts for the health check
type SessionStats interface {
	Stats() collaboration.Stats
}
