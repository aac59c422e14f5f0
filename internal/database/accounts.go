package database

import (
	"github.com/mealkeeper/mealkeeper/internal/entities"
)

func (d *Database) CreateAccount(username, email, passwordHash string) (*entities.Account, error) {
	account := &entities.Account{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := d.DB.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func (d *Database) GetAccountByID(id uint) (*entities.Account, error) {
	var account entities.Account
	if err := d.DB.First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (d *Database) GetAccountByEmail(email string) (*entities.Account, error) {
	var account entities.Account
	if err := d.DB.Where("email = ?", email).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
