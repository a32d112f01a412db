package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agrimaster/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrEmailTaken 在邮箱已注册时返回
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials 在邮箱或密码不正确时返回
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound 在用户不存在时返回
	ErrUserNotFound = errors.New("user not found")
)

// UserService 负责注册登录与用户偏好，密码只存 bcrypt 哈希
type UserService struct {
	db *gorm.DB
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// RegisterInput 定义注册字段
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Register 创建新用户
func (s *UserService) Register(input RegisterInput) (*db.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("valid email is required")
	}
	if len(input.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	var count int64
	if err := s.db.Model(&db.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = "farmer"
	}

	user := db.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Login 校验邮箱密码，成功返回用户
func (s *UserService) Login(email, password string) (*db.User, error) {
	var user db.User
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// AddCropsInterested 合并关注的作物名单，去重保序
func (s *UserService) AddCropsInterested(userID uint, crops []string) ([]string, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	seen := map[string]bool{}
	for _, c := range user.CropsInterested {
		seen[c] = true
	}
	for _, c := range crops {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		user.CropsInterested = append(user.CropsInterested, c)
		seen[c] = true
	}

	if err := s.db.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("save crops interested: %w", err)
	}
	return user.CropsInterested, nil
}

// CropsInterested 返回用户关注的作物名单
func (s *UserService) CropsInterested(userID uint) ([]string, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user.CropsInterested, nil
}
