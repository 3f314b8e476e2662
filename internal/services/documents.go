package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"docs-editor/internal/middleware"
	"docs-editor/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrForbidden    = errors.New("not authorized")
	ErrInvalidInput = errors.New("invalid input")
)

/*
LEARNING: DOCUMENT SERVICE

The document store is the only durability point in the system. Realtime
edits relayed over websockets are never written here on their own; clients
save explicitly. A few store operations push a notification into the live
session so connected editors see them right away:

  - restoring a version  -> receive-changes with the restored content
  - adding a comment     -> new-comment
  - deleting a comment   -> delete-comment
*/

// DocumentService enforces sharing roles on top of the document store
type DocumentService struct {
	repo     DocumentRepository
	realtime Realtime
}

// NewDocumentService creates a document service
func NewDocumentService(repo DocumentRepository, realtime Realtime) *DocumentService {
	return &DocumentService{
		repo:     repo,
		realtime: realtime,
	}
}

// load fetches a document and checks the caller's role against allowed
func (s *DocumentService) load(ctx context.Context, who *models.Identity, id string, allowed func(models.Role) bool) (*models.Document, models.Role, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, models.RoleNone, err
	}

	role := doc.RoleFor(who.ID, who.Email)
	if !allowed(role) {
		return nil, role, ErrForbidden
	}
	return doc, role, nil
}

func isOwner(r models.Role) bool { return r == models.RoleOwner }

// Create stores a new document owned by the caller
func (s *DocumentService) Create(ctx context.Context, who *models.Identity, in *models.DocumentCreate) (*models.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = models.DefaultDocumentTitle
	}

	doc := &models.Document{
		Title:   title,
		Content: in.Content,
		OwnerID: who.ID,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// List returns the documents the caller owns or was shared on
func (s *DocumentService) List(ctx context.Context, who *models.Identity) ([]*models.Document, error) {
	return s.repo.ListAccessible(ctx, who.ID, who.Email)
}

// Get returns a document the caller can view
func (s *DocumentService) Get(ctx context.Context, who *models.Identity, id string) (*models.Document, error) {
	doc, _, err := s.load(ctx, who, id, models.Role.CanView)
	return doc, err
}

// Update saves title/content. With SaveVersion the previous state is kept
// as a version first.
func (s *DocumentService) Update(ctx context.Context, who *models.Identity, id string, in *models.DocumentUpdate) (*models.Document, error) {
	ctx, span := middleware.StartSpan(ctx, "DocumentService.Update",
		attribute.String("document.id", id),
		attribute.Bool("document.save_version", in.SaveVersion),
	)
	defer span.End()

	doc, _, err := s.load(ctx, who, id, models.Role.CanEdit)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, err
	}

	var snapshot *models.Version
	if in.SaveVersion {
		snapshot = &models.Version{
			Title:         doc.Title,
			Content:       doc.Content,
			UpdatedBy:     who.ID,
			UpdatedByName: who.Name,
		}
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		doc.Title = *in.Title
	}
	if in.Content != nil {
		doc.Content = *in.Content
	}

	if err := s.repo.Save(ctx, doc, snapshot); err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, err
	}

	return doc, nil
}

// Delete removes a document. Owner only.
func (s *DocumentService) Delete(ctx context.Context, who *models.Identity, id string) error {
	if _, _, err := s.load(ctx, who, id, isOwner); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Share grants a role to an email address. Owner only.
func (s *DocumentService) Share(ctx context.Context, who *models.Identity, id string, in *models.ShareRequest) (*models.Document, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	if _, _, err := s.load(ctx, who, id, isOwner); err != nil {
		return nil, err
	}

	role := models.ParseShareRole(in.Role)
	if err := s.repo.UpsertShare(ctx, id, email, role); err != nil {
		return nil, err
	}

	log.Printf("  Document %s shared with %s as %s", id, email, role)
	return s.repo.GetByID(ctx, id)
}

// RemoveAccess revokes an email's share. Owner only.
func (s *DocumentService) RemoveAccess(ctx context.Context, who *models.Identity, id, email string) (*models.Document, error) {
	if _, _, err := s.load(ctx, who, id, isOwner); err != nil {
		return nil, err
	}

	if err := s.repo.RemoveShare(ctx, id, strings.TrimSpace(email)); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// AddComment stores a comment and announces it to the live session
func (s *DocumentService) AddComment(ctx context.Context, who *models.Identity, id string, in *models.CommentCreate) ([]models.Comment, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: comment content is required", ErrInvalidInput)
	}

	if _, _, err := s.load(ctx, who, id, models.Role.CanComment); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		DocumentID: id,
		Content:    in.Content,
		AuthorID:   who.ID,
		AuthorName: who.Name,
	}
	if err := s.repo.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	s.publish(ctx, id, models.EventNewComment, comment)

	return s.repo.ListComments(ctx, id)
}

// DeleteComment removes a comment. Allowed for its author and the document owner.
func (s *DocumentService) DeleteComment(ctx context.Context, who *models.Identity, id, commentID string) ([]models.Comment, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	comment, err := s.repo.GetComment(ctx, id, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != who.ID && doc.OwnerID != who.ID {
		return nil, ErrForbidden
	}

	if err := s.repo.DeleteComment(ctx, id, commentID); err != nil {
		return nil, err
	}

	s.publish(ctx, id, models.EventDeleteComment, commentID)

	return s.repo.ListComments(ctx, id)
}

// Versions lists saved versions, newest first
func (s *DocumentService) Versions(ctx context.Context, who *models.Identity, id string) ([]models.Version, error) {
	if _, _, err := s.load(ctx, who, id, models.Role.CanView); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, id)
}

// RestoreVersion puts a saved version back as the current content and
// pushes it to everyone editing the document
func (s *DocumentService) RestoreVersion(ctx context.Context, who *models.Identity, id, versionID string) (*models.Document, error) {
	ctx, span := middleware.StartSpan(ctx, "DocumentService.RestoreVersion",
		attribute.String("document.id", id),
		attribute.String("version.id", versionID),
	)
	defer span.End()

	doc, _, err := s.load(ctx, who, id, models.Role.CanEdit)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, err
	}

	version, err := s.repo.GetVersion(ctx, id, versionID)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, err
	}

	doc.Title = version.Title
	doc.Content = version.Content
	if err := s.repo.Save(ctx, doc, nil); err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, err
	}

	s.publish(ctx, id, models.EventReceive, doc.Content)

	return doc, nil
}

// Presence returns who is connected to a document right now
func (s *DocumentService) Presence(ctx context.Context, who *models.Identity, id string) ([]models.UserDescriptor, error) {
	if _, _, err := s.load(ctx, who, id, models.Role.CanView); err != nil {
		return nil, err
	}
	return s.realtime.Presence(id), nil
}

func (s *DocumentService) publish(ctx context.Context, documentID string, eventType models.EventType, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️  Failed to encode %s for document %s: %v", eventType, documentID, err)
		return
	}

	s.realtime.Publish(ctx, documentID, &models.Event{
		Type:       eventType,
		DocumentID: documentID,
		Payload:    payload,
	})
}
