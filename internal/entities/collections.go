package entities

import (
	"time"

	"gorm.io/gorm"
)

type Collection struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AccountID   uint           `gorm:"index" json:"account_id"`
	Name        string         `gorm:"index;size:200" json:"name"`
	Description string         `gorm:"size:1000" json:"description,omitempty"`
	Icon        string         `gorm:"size:50" json:"icon,omitempty"`
	Public      bool           `gorm:"default:false" json:"public"`

	Recipes []CollectionRecipe `gorm:"foreignKey:CollectionID" json:"recipes,omitempty"`
	Account Account            `gorm:"foreignKey:AccountID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// CollectionRecipe is an ordered membership row linking a collection to a recipe.
type CollectionRecipe struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	CollectionID uint `gorm:"index" json:"collection_id"`
	RecipeID     uint `gorm:"index" json:"recipe_id"`
	Position     int  `json:"position"`
}

func (Collection) TableName() string {
	return "collections"
}

func (CollectionRecipe) TableName() string {
	return "collection_recipes"
}
