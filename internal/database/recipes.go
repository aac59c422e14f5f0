package database

import (
	"gorm.io/gorm"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// RecipesForAccount retrieves all recipes for an account with their
// ingredients and instructions in stored order.
func (d *Database) RecipesForAccount(accountID uint) ([]entities.Recipe, error) {
	var recipes []entities.Recipe
	err := d.DB.
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Instructions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&recipes).Error
	return recipes, err
}

func (d *Database) GetRecipeByID(id uint) (*entities.Recipe, error) {
	var recipe entities.Recipe
	err := d.DB.
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Instructions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&recipe, id).Error
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (d *Database) CountRecipesForAccount(accountID uint) (int64, error) {
	var count int64
	err := d.DB.Model(&entities.Recipe{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}
