package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docs-editor/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepositoryImpl handles all database operations for documents using GORM
// Learning: This is the IMPLEMENTATION. It doesn't know about any interface.
// The services package will declare the interface it needs.
type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository
// Returns concrete type - "Accept interfaces, return structs"
func NewDocumentRepository(db *gorm.DB) *DocumentRepositoryImpl {
	return &DocumentRepositoryImpl{db: db}
}

// Create inserts a new document
// The KSUID is auto-generated in the BeforeCreate hook
func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID loads a document with its shares and comments
func (r *DocumentRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	err := r.db.WithContext(ctx).
		Preload("SharedWith").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// ListAccessible returns documents owned by userID or shared with email,
// most recently updated first
func (r *DocumentRepositoryImpl) ListAccessible(ctx context.Context, userID, email string) ([]*models.Document, error) {
	var documents []*models.Document

	shared := r.db.Model(&models.Share{}).
		Select("document_id").
		Where("LOWER(email) = ?", strings.ToLower(email))

	err := r.db.WithContext(ctx).
		Preload("SharedWith").
		Where("owner_id = ?", userID).
		Or("id IN (?)", shared).
		Order("updated_at DESC").
		Find(&documents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return documents, nil
}

// Save writes title and content. When snapshot is non-nil it is stored in the
// same transaction, so a version never exists without the save that made it.
func (r *DocumentRepositoryImpl) Save(ctx context.Context, doc *models.Document, snapshot *models.Version) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if snapshot != nil {
			snapshot.DocumentID = doc.ID
			if err := tx.Create(snapshot).Error; err != nil {
				return fmt.Errorf("failed to store version: %w", err)
			}
		}

		result := tx.Model(&models.Document{ID: doc.ID}).Updates(map[string]interface{}{
			"title":   doc.Title,
			"content": doc.Content,
		})
		if result.Error != nil {
			return fmt.Errorf("failed to update document: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("document %s: %w", doc.ID, models.ErrNotFound)
		}
		return nil
	})
}

// Delete removes a document and, via cascade, its shares, comments and versions
func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", id)

	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}

	return nil
}

// UpsertShare grants role to email, replacing any existing grant
func (r *DocumentRepositoryImpl) UpsertShare(ctx context.Context, documentID, email string, role models.Role) error {
	share := &models.Share{
		DocumentID: documentID,
		Email:      strings.ToLower(email),
		Role:       role,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(share).Error
	if err != nil {
		return fmt.Errorf("failed to share document: %w", err)
	}

	return nil
}

// RemoveShare revokes whatever role email has. Missing grants are not an error.
func (r *DocumentRepositoryImpl) RemoveShare(ctx context.Context, documentID, email string) error {
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND LOWER(email) = ?", documentID, strings.ToLower(email)).
		Delete(&models.Share{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove access: %w", err)
	}
	return nil
}

// AddComment stores a new comment
func (r *DocumentRepositoryImpl) AddComment(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

// GetComment loads a single comment of a document
func (r *DocumentRepositoryImpl) GetComment(ctx context.Context, documentID, commentID string) (*models.Comment, error) {
	var comment models.Comment

	err := r.db.WithContext(ctx).
		First(&comment, "id = ? AND document_id = ?", commentID, documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("comment %s: %w", commentID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return &comment, nil
}

// DeleteComment removes a comment
func (r *DocumentRepositoryImpl) DeleteComment(ctx context.Context, documentID, commentID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND document_id = ?", commentID, documentID).
		Delete(&models.Comment{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete comment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("comment %s: %w", commentID, models.ErrNotFound)
	}

	return nil
}

// ListComments returns a document's comments, oldest first
func (r *DocumentRepositoryImpl) ListComments(ctx context.Context, documentID string) ([]models.Comment, error) {
	var comments []models.Comment

	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nil
}

// ListVersions returns a document's version history, newest first
func (r *DocumentRepositoryImpl) ListVersions(ctx context.Context, documentID string) ([]models.Version, error) {
	var versions []models.Version

	// KSUID ids break ties between versions saved within the same second
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	return versions, nil
}

// GetVersion loads one version of a document
func (r *DocumentRepositoryImpl) GetVersion(ctx context.Context, documentID, versionID string) (*models.Version, error) {
	var version models.Version

	err := r.db.WithContext(ctx).
		First(&version, "id = ? AND document_id = ?", versionID, documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("version %s: %w", versionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return &version, nil
}
