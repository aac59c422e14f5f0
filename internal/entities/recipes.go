package entities

import (
	"time"

	"gorm.io/gorm"
)

type DishType string

const (
	DishTypeAppetizer DishType = "appetizer"
	DishTypeMain      DishType = "main"
	DishTypeSide      DishType = "side"
	DishTypeDessert   DishType = "dessert"
	DishTypeBreakfast DishType = "breakfast"
	DishTypeSoup      DishType = "soup"
	DishTypeSalad     DishType = "salad"
	DishTypeDrink     DishType = "drink"
	DishTypeSauce     DishType = "sauce"
	DishTypeOther     DishType = "other"
)

type Recipe struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AccountID uint           `gorm:"index" json:"account_id"`
	Title     string         `gorm:"index;size:200" json:"title"`
	PrepTime  int            `json:"prep_time,omitempty"` // minutes
	CookTime  int            `json:"cook_time,omitempty"` // minutes
	Servings  int            `json:"servings,omitempty"`
	DishType  DishType       `gorm:"size:20;default:'other'" json:"dish_type"`
	Cuisine   string         `gorm:"size:100" json:"cuisine,omitempty"`
	Tags      string         `gorm:"size:500" json:"tags,omitempty"` // comma-separated
	Rating    int            `json:"rating,omitempty"`
	Notes     string         `gorm:"type:text" json:"notes,omitempty"`
	SourceURL string         `gorm:"size:2048" json:"source_url,omitempty"`
	Locked    bool           `gorm:"default:false" json:"locked"`

	Ingredients  []Ingredient  `gorm:"foreignKey:RecipeID" json:"ingredients,omitempty"`
	Instructions []Instruction `gorm:"foreignKey:RecipeID" json:"instructions,omitempty"`
	Account      Account       `gorm:"foreignKey:AccountID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type Ingredient struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	RecipeID uint    `gorm:"index" json:"recipe_id"`
	Name     string  `gorm:"size:200" json:"name"`
	Amount   float64 `json:"amount"`
	Unit     string  `gorm:"size:50" json:"unit,omitempty"`
	Position int     `json:"position"`
}

type Instruction struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RecipeID uint   `gorm:"index" json:"recipe_id"`
	Text     string `gorm:"type:text" json:"text"`
	Position int    `json:"position"`
}

func (Recipe) TableName() string {
	return "recipes"
}

func (Ingredient) TableName() string {
	return "ingredients"
}

func (Instruction) TableName() string {
	return "instructions"
}
