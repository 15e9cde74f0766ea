// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"gorm.io/gorm"
	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
	"llm-chat-go/pkg/hash"
	"llm-chat-go/pkg/log"
	"llm-chat-go/pkg/token"
)

// minPasswordLength 与注册表单的校验保持一致。
const minPasswordLength = 6

// UserService 接口定义了所有与用户认证相关的业务操作。
type UserService interface {
	Register(ctx context.Context, email, password, name string) (*model.User, token.Pair, error)
	Login(ctx context.Context, email, password string) (*model.User, token.Pair, error)
	RefreshToken(ctx context.Context, refreshToken string) (token.Pair, error)
	// Authenticate 校验 access token 并返回对应用户，已吊销的 token 视为无效。
	Authenticate(ctx context.Context, accessToken string) (*model.User, *token.CustomClaims, error)
	Logout(ctx context.Context, claims *token.CustomClaims) error
	GetProfile(userID uint) (*model.User, error)
}

type userService struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.TokenRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtManager: jwtManager,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, email, password, name string) (*model.User, token.Pair, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, token.Pair{}, validationf("invalid email")
	}
	if len(password) < minPasswordLength {
		return nil, token.Pair{}, validationf("password must be at least %d characters", minPasswordLength)
	}

	// 1. 检查邮箱是否已存在
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return nil, token.Pair{}, fmt.Errorf("%w: email already registered", ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, token.Pair{}, persistence(err)
	}

	// 2. 对密码进行哈希处理
	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, token.Pair{}, err
	}

	user := &model.User{Email: email, Password: hashed, Name: strings.TrimSpace(name)}
	if err := s.userRepo.Create(user); err != nil {
		return nil, token.Pair{}, persistence(err)
	}
	log.Infof("User '%s' registered", email)

	pair, err := s.jwtManager.GeneratePair(user.ID, user.Email)
	return user, pair, err
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(ctx context.Context, email, password string) (*model.User, token.Pair, error) {
	user, err := s.userRepo.FindByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.Pair{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, token.Pair{}, persistence(err)
	}
	if !hash.CheckPasswordHash(password, user.Password) {
		return nil, token.Pair{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	pair, err := s.jwtManager.GeneratePair(user.ID, user.Email)
	return user, pair, err
}

// RefreshToken 验证 refresh token 并签发新的 token 对。
func (s *userService) RefreshToken(ctx context.Context, refreshToken string) (token.Pair, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken, token.TypeRefresh)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}
	if revoked, err := s.tokenRepo.IsRevoked(ctx, claims.ID); err != nil {
		return token.Pair{}, err
	} else if revoked {
		return token.Pair{}, fmt.Errorf("%w: refresh token revoked", ErrUnauthorized)
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}
	// 旧 refresh token 轮换后作废。
	if err := s.tokenRepo.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		log.Warnf("吊销旧 refresh token 失败: %v", err)
	}
	return s.jwtManager.GeneratePair(user.ID, user.Email)
}

func (s *userService) Authenticate(ctx context.Context, accessToken string) (*model.User, *token.CustomClaims, error) {
	claims, err := s.jwtManager.VerifyToken(accessToken, token.TypeAccess)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	revoked, err := s.tokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, fmt.Errorf("%w: token revoked", ErrUnauthorized)
	}
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}
	return user, claims, nil
}

// Logout 把 access token 加入黑名单，剩余有效期作为过期时间。
func (s *userService) Logout(ctx context.Context, claims *token.CustomClaims) error {
	return s.tokenRepo.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (s *userService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}
