package db

import "gorm.io/gorm"

// CommunityPost 是社区帖子
// Content 为用户提交的 Markdown 原文，HTML 为渲染并消毒后的结果
type CommunityPost struct {
	gorm.Model
	AuthorID uint `gorm:"index"`
	Title    string
	Content  string
	HTML     string
}
