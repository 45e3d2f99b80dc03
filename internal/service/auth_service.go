package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/config"
	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务
type AuthService struct {
	userRepo  *repository.UserRepository
	notifySvc *NotificationService
	rdb       *redis.Client
	cfg       *config.Config
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo *repository.UserRepository, notifySvc *NotificationService, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		notifySvc: notifySvc,
		rdb:       rdb,
		cfg:       cfg,
	}
}

// TokenPair Token对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SignupReq 注册请求
type SignupReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
}

// Signup 注册新用户，进入待审批状态，管理员批准后才能登录
func (s *AuthService) Signup(ctx context.Context, req *SignupReq) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, NewValidationError("email", "邮箱已被注册")
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	now := time.Now()
	user := &entity.User{
		ID:           uuid.New().String()[:32],
		Email:        email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         entity.UserRoleUser,
		IsApproved:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	return user, nil
}

// Login 邮箱密码登录。未批准的账号一律拒绝。
func (s *AuthService) Login(ctx context.Context, email, password string) (*entity.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, NewValidationError("email", "邮箱或密码错误")
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, NewValidationError("email", "邮箱或密码错误")
	}

	if !user.IsApproved {
		return nil, nil, NewValidationError("email", "账号尚未通过管理员审批")
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.userRepo.TouchLastLogin(ctx, user.ID); err != nil {
		// 登录时间只是展示用途，失败不阻断登录
		log.Printf("[AuthService] 更新登录时间失败: %v", err)
	}

	return user, pair, nil
}

// ApproveUser 管理员批准注册申请
func (s *AuthService) ApproveUser(ctx context.Context, userID, adminID string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsApproved {
		return user, nil
	}

	now := time.Now()
	user.IsApproved = true
	user.ApprovedBy = &adminID
	user.ApprovedAt = &now
	user.UpdatedAt = now

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("批准用户失败: %w", err)
	}

	go s.notifySvc.NotifyUserApproved(context.Background(), user)

	return user, nil
}

// ListPendingUsers 待审批用户列表
func (s *AuthService) ListPendingUsers(ctx context.Context, page, pageSize int) ([]entity.User, int64, error) {
	return s.userRepo.FindPending(ctx, page, pageSize)
}

// GetCurrentUser 获取当前用户
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// generateTokenPair 生成Token对
func (s *AuthService) generateTokenPair(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := time.Now()
	jti := uuid.New().String()

	// Access Token
	accessClaims := jwt.MapClaims{
		"sub":   user.ID,
		"uid":   user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
		"iss":   s.cfg.JWT.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":   jti,
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	// Refresh Token
	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWT.RefreshTokenExpire).Unix(),
		"jti":  refreshJti,
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	// 存储Refresh Token到Redis
	if s.rdb != nil {
		s.rdb.Set(ctx, "token:refresh:"+refreshJti, user.ID, s.cfg.JWT.RefreshTokenExpire)
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}

// RefreshToken 刷新Token
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims["type"] != "refresh" {
		return nil, fmt.Errorf("invalid token type")
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID := ""
	if s.rdb != nil {
		userID, err = s.rdb.Get(ctx, "token:refresh:"+jti).Result()
		if err != nil {
			return nil, fmt.Errorf("refresh token expired or invalid")
		}
	} else {
		userID, _ = claims["sub"].(string)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	if !user.IsApproved {
		return nil, fmt.Errorf("user not approved")
	}

	// 删除旧的Refresh Token
	if s.rdb != nil {
		s.rdb.Del(ctx, "token:refresh:"+jti)
	}

	return s.generateTokenPair(ctx, user)
}

// Logout 登出
func (s *AuthService) Logout(ctx context.Context, refreshTokenString string) error {
	if s.rdb == nil || refreshTokenString == "" {
		return nil
	}
	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if jti, _ := claims["jti"].(string); jti != "" {
			s.rdb.Del(ctx, "token:refresh:"+jti)
		}
	}
	return nil
}
