package db

import "gorm.io/gorm"

// User 定义了系统用户
// 密码只存 bcrypt 哈希，CropsInterested 为关注的作物名列表
type User struct {
	gorm.Model
	Name            string
	Email           string `gorm:"uniqueIndex"`
	PasswordHash    string
	Role            string   `gorm:"default:farmer"`
	CropsInterested []string `gorm:"serializer:json"`
}
