package entities

import (
	"time"

	"gorm.io/gorm"
)

type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// ValidMealType reports whether s is one of the known meal-type tags.
func ValidMealType(s string) bool {
	switch MealType(s) {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	}
	return false
}

type MealPlan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index" json:"account_id"`
	Name      string    `gorm:"index;size:200" json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Meals   []Meal  `gorm:"foreignKey:MealPlanID" json:"meals,omitempty"`
	Account Account `gorm:"foreignKey:AccountID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Meal is one meal slot (e.g., Tuesday dinner) within a plan.
type Meal struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MealPlanID uint      `gorm:"index" json:"meal_plan_id"`
	Date       time.Time `json:"date"`
	Type       MealType  `gorm:"size:20" json:"type"`

	Recipes []MealRecipe `gorm:"foreignKey:MealID" json:"recipes,omitempty"`
}

type MealRecipe struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	MealID   uint `gorm:"index" json:"meal_id"`
	RecipeID uint `gorm:"index" json:"recipe_id"`
	Servings int  `json:"servings"`
}

func (MealPlan) TableName() string {
	return "meal_plans"
}

func (Meal) TableName() string {
	return "meals"
}

func (MealRecipe) TableName() string {
	return "meal_recipes"
}
