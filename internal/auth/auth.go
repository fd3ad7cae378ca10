// Package auth handles account registration, credential checks and JWT
// bearer tokens. A token's subject is the user id; every request resolves
// it back to a live account row.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/kestrelworks/docent/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to transport layers.
var (
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrEmailTaken         = errors.New("auth: email already registered")
)

// Service issues and validates tokens and manages account credentials.
type Service struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

// ServiceOpts holds parameters for creating a Service.
type ServiceOpts struct {
	DB     *gorm.DB
	Secret string
	TTL    time.Duration // defaults to 24h
}

// NewService creates a Service.
func NewService(opts ServiceOpts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("auth: service: db is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("auth: service: secret is required")
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Service{db: opts.DB, secret: []byte(opts.Secret), ttl: ttl}, nil
}

// Register creates a new account with a bcrypt-hashed password.
func (s *Service) Register(email, password string) (*models.User, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("auth: check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return &user, nil
}

// Login verifies credentials and returns a signed bearer token.
func (s *Service) Login(email, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.Where("email = ? AND active = ?", email, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("auth: lookup user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// IssueToken signs a token whose subject is the user id.
func (s *Service) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// UserFromToken validates a bearer token and resolves its subject to an
// active account. Any parse, signature or lookup miss maps to
// ErrInvalidToken so callers cannot distinguish token problems from
// deactivated accounts.
func (s *Service) UserFromToken(tokenString string) (*models.User, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.Where("id = ? AND active = ?", claims.Subject, true).First(&user).Error; err != nil {
		return nil, ErrInvalidToken
	}
	return &user, nil
}
