package entities

import (
	"time"

	"gorm.io/gorm"
)

type ShoppingList struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AccountID uint   `gorm:"index" json:"account_id"`
	Name      string `gorm:"index;size:200" json:"name"`

	Items   []ShoppingListItem `gorm:"foreignKey:ShoppingListID" json:"items,omitempty"`
	Account Account            `gorm:"foreignKey:AccountID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ShoppingListItem struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	ShoppingListID uint    `gorm:"index" json:"shopping_list_id"`
	Ingredient     string  `gorm:"size:200" json:"ingredient"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `gorm:"size:50" json:"unit,omitempty"`
	Category       string  `gorm:"size:100" json:"category,omitempty"`
	Checked        bool    `gorm:"default:false" json:"checked"`

	// RecipeID links the item back to the recipe it was generated from, if any.
	RecipeID *uint `gorm:"index" json:"recipe_id,omitempty"`
}

func (ShoppingList) TableName() string {
	return "shopping_lists"
}

func (ShoppingListItem) TableName() string {
	return "shopping_list_items"
}
