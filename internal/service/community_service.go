package service

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/agrimaster/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"
)

// ErrPostNotFound 在帖子不存在时返回
var ErrPostNotFound = errors.New("community post not found")

// CommunityService 负责社区帖子。
// 正文以 Markdown 提交，渲染后经 bluemonday 消毒再入库，读路径直接返回 HTML。
type CommunityService struct {
	db        *gorm.DB
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewCommunityService 构造 CommunityService
func NewCommunityService(gdb *gorm.DB) *CommunityService {
	return &CommunityService{
		db:        gdb,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// PostInput 定义发帖字段
type PostInput struct {
	Title   string
	Content string
}

// CreatePost 渲染并消毒 Markdown 后保存帖子
func (s *CommunityService) CreatePost(authorID uint, input PostInput) (*db.CommunityPost, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("post title is required")
	}

	html, err := s.render(input.Content)
	if err != nil {
		return nil, err
	}

	post := db.CommunityPost{
		AuthorID: authorID,
		Title:    title,
		Content:  input.Content,
		HTML:     html,
	}
	if err := s.db.Create(&post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

// GetPost 按 ID 取帖子
func (s *CommunityService) GetPost(id uint) (*db.CommunityPost, error) {
	var post db.CommunityPost
	if err := s.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// ListPosts 返回最近的帖子，新的在前
func (s *CommunityService) ListPosts(limit int) ([]db.CommunityPost, error) {
	if limit <= 0 {
		limit = 20
	}
	var posts []db.CommunityPost
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *CommunityService) render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return s.sanitizer.Sanitize(buf.String()), nil
}
