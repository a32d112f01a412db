package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/service"
	"github.com/gin-gonic/gin"
)

type postPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func postToPayload(post *db.CommunityPost) gin.H {
	return gin.H{
		"id":         post.ID,
		"author_id":  post.AuthorID,
		"title":      post.Title,
		"content":    post.Content,
		"html":       post.HTML,
		"created_at": post.CreatedAt.Format(time.RFC3339),
	}
}

// ListPosts 返回最近的社区帖子
func (a *API) ListPosts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	posts, err := a.community.ListPosts(limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取帖子失败")
		return
	}

	items := make([]gin.H, 0, len(posts))
	for i := range posts {
		items = append(items, postToPayload(&posts[i]))
	}
	respondSuccess(c, http.StatusOK, gin.H{"posts": items})
}

// GetPost 返回单个帖子
func (a *API) GetPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	post, err := a.community.GetPost(id)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			respondError(c, http.StatusNotFound, "帖子不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取帖子失败")
		return
	}
	respondSuccess(c, http.StatusOK, postToPayload(post))
}

// CreatePost 发布帖子，Markdown 正文在服务层渲染并消毒
func (a *API) CreatePost(c *gin.Context) {
	var payload postPayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	post, err := a.community.CreatePost(currentUserID(c), service.PostInput{
		Title:   payload.Title,
		Content: payload.Content,
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, postToPayload(post))
}
