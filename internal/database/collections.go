package database

import (
	"gorm.io/gorm"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// CollectionsForAccount retrieves all collections with their ordered
// recipe membership rows.
func (d *Database) CollectionsForAccount(accountID uint) ([]entities.Collection, error) {
	var collections []entities.Collection
	err := d.DB.
		Preload("Recipes", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&collections).Error
	return collections, err
}

func (d *Database) CountCollectionsForAccount(accountID uint) (int64, error) {
	var count int64
	err := d.DB.Model(&entities.Collection{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}
