package services

import (
	"context"

	"docs-editor/internal/models"
)

/*
LEARNING: GO INTERFACE BEST PRACTICE

"Accept interfaces, return structs". Interfaces live with the consumer.
This package uses the document store and the realtime gateway, so it
declares exactly the methods it calls on each and nothing more.
*/

// DocumentRepository is what the document service needs from storage
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListAccessible(ctx context.Context, userID, email string) ([]*models.Document, error)
	Save(ctx context.Context, doc *models.Document, snapshot *models.Version) error
	Delete(ctx context.Context, id string) error

	UpsertShare(ctx context.Context, documentID, email string, role models.Role) error
	RemoveShare(ctx context.Context, documentID, email string) error

	AddComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, documentID, commentID string) (*models.Comment, error)
	DeleteComment(ctx context.Context, documentID, commentID string) error
	ListComments(ctx context.Context, documentID string) ([]models.Comment, error)

	ListVersions(ctx context.Context, documentID string) ([]models.Version, error)
	GetVersion(ctx context.Context, documentID, versionID string) (*models.Version, error)
}

// Realtime is what the document service needs from the collaboration layer
type Realtime interface {
	Publish(ctx context.Context, documentID string, event *models.Event) int
	Presence(documentID string) []models.UserDescriptor
}
