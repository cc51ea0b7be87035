package models

import (
	"time"
)

// Entry is one row of a model's collection table. Every model shares this
// layout; the table name comes from the model's collection.
type Entry struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Data      JSON   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComponentLink places a component row in an owner's attribute slot
type ComponentLink struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	OwnerModel    string `gorm:"size:255;not null;index:idx_component_links_owner,priority:1"`
	OwnerID       uint64 `gorm:"not null;index:idx_component_links_owner,priority:2"`
	Field         string `gorm:"size:255;not null;index:idx_component_links_owner,priority:3"`
	ComponentType string `gorm:"size:255;not null"`
	ComponentID   uint64 `gorm:"not null"`
	Order         int    `gorm:"column:sort_order;not null"`
}

// TableName overrides the table name for ComponentLink
func (ComponentLink) TableName() string {
	return "component_links"
}

// MorphLink joins a morph model row to a polymorphic target
type MorphLink struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	MorphModel  string `gorm:"size:255;not null;index:idx_morph_links_morph,priority:1"`
	MorphID     uint64 `gorm:"not null;index:idx_morph_links_morph,priority:2"`
	MorphField  string `gorm:"size:255;not null"`
	RelatedType string `gorm:"size:255;not null;index:idx_morph_links_related,priority:1"`
	RelatedID   uint64 `gorm:"not null;index:idx_morph_links_related,priority:2"`
	Field       string `gorm:"size:255;not null"`
	Order       int    `gorm:"column:sort_order;not null"`
}

// TableName overrides the table name for MorphLink
func (MorphLink) TableName() string {
	return "morph_links"
}
