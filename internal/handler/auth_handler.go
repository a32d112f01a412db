package handler

import (
	"errors"
	"net/http"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userToPayload(user *db.User) gin.H {
	return gin.H{
		"id":               user.ID,
		"name":             user.Name,
		"email":            user.Email,
		"role":             user.Role,
		"crops_interested": user.CropsInterested,
	}
}

// Register 注册新用户并直接建立会话
func (a *API) Register(c *gin.Context) {
	var payload registerPayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	user, err := a.users.Register(service.RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			respondError(c, http.StatusConflict, "邮箱已注册")
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "保存会话失败")
		return
	}
	respondSuccess(c, http.StatusCreated, userToPayload(user))
}

// Login 校验凭据并写入会话
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	user, err := a.users.Login(payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "邮箱或密码不正确")
			return
		}
		respondError(c, http.StatusInternalServerError, "登录失败")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "保存会话失败")
		return
	}
	respondSuccess(c, http.StatusOK, userToPayload(user))
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "清除会话失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "已退出登录"})
}

// Profile 返回当前登录用户
func (a *API) Profile(c *gin.Context) {
	crops, err := a.users.CropsInterested(currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "用户不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取用户信息失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"id":               currentUserID(c),
		"crops_interested": crops,
	})
}

// AddCropsInterested 追加当前用户关注的作物
func (a *API) AddCropsInterested(c *gin.Context) {
	var payload struct {
		Crops []string `json:"crops"`
	}
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	crops, err := a.users.AddCropsInterested(currentUserID(c), payload.Crops)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "用户不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "保存失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"crops_interested": crops})
}
