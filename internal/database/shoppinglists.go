package database

import (
	"github.com/mealkeeper/mealkeeper/internal/entities"
)

func (d *Database) ShoppingListsForAccount(accountID uint) ([]entities.ShoppingList, error) {
	var lists []entities.ShoppingList
	err := d.DB.
		Preload("Items").
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&lists).Error
	return lists, err
}

func (d *Database) CountShoppingListsForAccount(accountID uint) (int64, error) {
	var count int64
	err := d.DB.Model(&entities.ShoppingList{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}
