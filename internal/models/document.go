package models

import (
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

const DefaultDocumentTitle = "Untitled Document"

// Role is the access level a user has on a document
type Role string

const (
	RoleNone      Role = ""
	RoleViewer    Role = "viewer"
	RoleCommenter Role = "commenter"
	RoleEditor    Role = "editor"
	RoleOwner     Role = "owner"
)

// ParseShareRole normalizes a requested share role.
// Unknown or empty roles fall back to viewer; owner cannot be granted.
func ParseShareRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCommenter:
		return RoleCommenter
	case RoleEditor:
		return RoleEditor
	default:
		return RoleViewer
	}
}

func (r Role) CanView() bool { return r != RoleNone }

func (r Role) CanComment() bool {
	return r == RoleOwner || r == RoleEditor || r == RoleCommenter
}

func (r Role) CanEdit() bool { return r == RoleOwner || r == RoleEditor }

// Document is a collaboratively edited document.
// Learning: KSUID ids sort by creation time, same as everywhere else in the store.
type Document struct {
	ID        string    `json:"id" gorm:"type:char(27);primaryKey"`
	Title     string    `json:"title" gorm:"type:text;not null"`
	Content   string    `json:"content" gorm:"type:text;not null;default:''"`
	OwnerID   string    `json:"owner_id" gorm:"type:varchar(64);not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	SharedWith []Share   `json:"shared_with" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Comments   []Comment `json:"comments" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Versions   []Version `json:"-" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate hook generates KSUID before inserting
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = ksuid.New().String()
	}
	return nil
}

// RoleFor resolves the access level of a user on this document.
// Ownership wins over any share entry; shares are matched by email.
func (d *Document) RoleFor(userID, email string) Role {
	if userID != "" && d.OwnerID == userID {
		return RoleOwner
	}
	if email == "" {
		return RoleNone
	}
	for _, s := range d.SharedWith {
		if strings.EqualFold(s.Email, email) {
			return s.Role
		}
	}
	return RoleNone
}

// Share grants a role on a document to an email address
type Share struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	DocumentID string    `json:"-" gorm:"type:char(27);not null;uniqueIndex:idx_share_doc_email"`
	Email      string    `json:"email" gorm:"type:varchar(320);not null;uniqueIndex:idx_share_doc_email"`
	Role       Role      `json:"role" gorm:"type:varchar(20);not null;default:'viewer'"`
	CreatedAt  time.Time `json:"-"`
}

func (Share) TableName() string {
	return "document_shares"
}

// Comment is a discussion note attached to a document
type Comment struct {
	ID         string    `json:"id" gorm:"type:char(27);primaryKey"`
	DocumentID string    `json:"document_id" gorm:"type:char(27);not null;index"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	AuthorID   string    `json:"author_id" gorm:"type:varchar(64);not null"`
	AuthorName string    `json:"author_name" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = ksuid.New().String()
	}
	return nil
}

// Version is a snapshot of a document taken before an explicit save
type Version struct {
	ID            string    `json:"id" gorm:"type:char(27);primaryKey"`
	DocumentID    string    `json:"document_id" gorm:"type:char(27);not null;index:idx_version_doc_time"`
	Title         string    `json:"title" gorm:"type:text"`
	Content       string    `json:"content" gorm:"type:text"`
	UpdatedBy     string    `json:"updated_by" gorm:"type:varchar(64)"`
	UpdatedByName string    `json:"updated_by_name" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_version_doc_time"`
}

func (v *Version) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = ksuid.New().String()
	}
	return nil
}

type DocumentCreate struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type DocumentUpdate struct {
	Title       *string `json:"title,omitempty"`
	Content     *string `json:"content,omitempty"`
	SaveVersion bool    `json:"saveVersion,omitempty"`
}

type ShareRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type CommentCreate struct {
	Content string `json:"content"`
}
