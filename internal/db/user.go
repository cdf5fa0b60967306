package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了后台管理员模型
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
}

// ErrInvalidCredentials 表示用户名或密码不匹配。
var ErrInvalidCredentials = errors.New("invalid credentials")

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的用户。
func EnsureUser(gdb *gorm.DB, username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if gdb == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := gdb.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return gdb.Create(&User{Username: trimmedUser, Password: string(hashed)}).Error
	}

	return nil
}

// Authenticate 校验用户名与密码，成功时返回对应用户。
func Authenticate(gdb *gorm.DB, username, password string) (*User, error) {
	if gdb == nil {
		return nil, errors.New("database not initialized")
	}

	var user User
	if err := gdb.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// ErrEmptyCredentials 表示用户名或密码为空。
var ErrEmptyCredentials = errors.New("username and password are required")

// SetPassword 创建或重置管理员账号，返回是否为新建。
func SetPassword(gdb *gorm.DB, username, password string) (created bool, err error) {
	trimmedUser := strings.TrimSpace(username)
	if trimmedUser == "" || strings.TrimSpace(password) == "" {
		return false, ErrEmptyCredentials
	}
	if gdb == nil {
		return false, errors.New("database not initialized")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	var existing User
	err = gdb.Where("username = ?", trimmedUser).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return true, gdb.Create(&User{Username: trimmedUser, Password: string(hashed)}).Error
	case err != nil:
		return false, err
	}
	return false, gdb.Model(&existing).Update("password", string(hashed)).Error
}
