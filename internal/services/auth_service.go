package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"patient@example.com"` // User email
	Password string `json:"password" validate:"required,min=6" example:"password123"`     // User password
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email" example:"patient@example.com"` // User email address
	Password  string `json:"password" validate:"required,min=6" example:"password123"`     // User password
	FirstName string `json:"first_name" validate:"required,min=2" example:"Jane"`          // User first name
	LastName  string `json:"last_name" validate:"required,min=2" example:"Doe"`            // User last name
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	User  models.User `json:"user"`
}

// Claims is the JWT payload. Subject carries the account id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	ledger    LedgerStore
	rewards   *RewardService
	validator *ValidationHelper
	now       func() time.Time
	logger    zerolog.Logger
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, ledger LedgerStore, rewards *RewardService) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		ledger:    ledger,
		rewards:   rewards,
		validator: NewValidationHelper(),
		now:       time.Now,
		logger:    logger.Component("auth"),
	}
}

// Register creates the user, opens its ledger account and grants the welcome
// bonus. A failed bonus is logged; registration still succeeds.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(req.Email),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.RoleUser,
		CreatedAt: s.now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role,
			care_coins_balance, lifetime_earned, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 1, $7, $7)`,
		user.ID, user.Email, hashedPassword, user.FirstName, user.LastName, user.Role, user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if _, err := s.ledger.CreateAccount(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}

	if s.rewards != nil {
		bonus, err := s.rewards.GrantWelcomeBonus(ctx, user.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("account_id", user.ID).Msg("welcome bonus failed")
		} else if bonus != nil {
			user.Balance = bonus.Amount
			user.LifetimeEarned = bonus.Amount
		}
	}

	token, err := generateJWT(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info().Str("account_id", user.ID).Msg("user registered")
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

	var (
		user           models.User
		hashedPassword string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, role, created_at
		FROM users WHERE email = $1`, strings.ToLower(req.Email)).
		Scan(&user.ID, &user.Email, &hashedPassword, &user.FirstName, &user.LastName, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !verifyPassword(req.Password, hashedPassword) {
		s.logger.Info().Str("account_id", user.ID).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}

	if account, err := s.ledger.GetAccount(ctx, user.ID); err == nil {
		user.Balance = account.Balance
		user.LifetimeEarned = account.LifetimeEarned
	}

	token, err := generateJWT(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// Logout blacklists the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := ParseToken(token)
	if err != nil {
		return err
	}
	if s.redis == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

// IsRevoked reports whether token was logged out. Without redis nothing is.
func (s *AuthService) IsRevoked(ctx context.Context, token string) (bool, error) {
	if s.redis == nil {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ParseToken validates an HS256 token signed with jwt.secret_key.
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

func generateJWT(accountID, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour)),
			ID:        uuid.NewString(),
		},
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2IDKey(password, salt)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(hash, argon2IDKey(password, salt)) == 1
}

func argon2IDKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
}
