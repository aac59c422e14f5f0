package database

import (
	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// MealPlansForAccount retrieves all meal plans with their meals and
// per-meal recipe rows.
func (d *Database) MealPlansForAccount(accountID uint) ([]entities.MealPlan, error) {
	var plans []entities.MealPlan
	err := d.DB.
		Preload("Meals.Recipes").
		Preload("Meals").
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&plans).Error
	return plans, err
}

func (d *Database) CountMealPlansForAccount(accountID uint) (int64, error) {
	var count int64
	err := d.DB.Model(&entities.MealPlan{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}
