package services

import (
	"fmt"
	"log"
	"time"

	"ghiblify/internal/models"
	"ghiblify/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles business logic for authentication and profiles.
type AuthService struct {
	userRepo   repositories.UserRepository
	feedRepo   repositories.FeedRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
}

// NewAuthService creates a new AuthService. feedRepo is used for
// profile stats and may be nil when stats are not needed.
func NewAuthService(userRepo repositories.UserRepository, feedRepo repositories.FeedRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		feedRepo:   feedRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour, // Token valid for 24 hours
	}
}

// RegisterUser registers a new user, hashes their password, and saves them.
func (s *AuthService) RegisterUser(user *models.User) error {
	// Check if username or email already exists
	if existingUser, err := s.userRepo.GetByUsername(user.Username); err == nil && existingUser != nil {
		return fmt.Errorf("username '%s' already taken", user.Username)
	}
	if existingUser, err := s.userRepo.GetByEmail(user.Email); err == nil && existingUser != nil {
		return fmt.Errorf("email '%s' already registered", user.Email)
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword) // Store the hashed password

	if err := s.userRepo.Create(user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		// Do not reveal whether the username exists
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(s.tokenDurat).Unix(), // Token expiration time
		"iat":      time.Now().Unix(),                   // Issued at time
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// GetProfile returns a user's profile with image and like totals.
func (s *AuthService) GetProfile(userID string) (*models.Profile, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{User: *user}
	profile.Password = ""

	if s.feedRepo != nil {
		totalImages, err := s.feedRepo.CountByUser(userID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute profile stats: %w", err)
		}
		totalLikes, err := s.feedRepo.SumLikesByUser(userID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute profile stats: %w", err)
		}
		profile.Stats = models.ProfileStats{
			TotalImages: totalImages,
			TotalLikes:  totalLikes,
		}
	}
	return profile, nil
}

// ProfileUpdate carries the mutable profile fields. Nil means
// "leave unchanged".
type ProfileUpdate struct {
	Username            *string `json:"username" validate:"omitempty,min=3,max=100"`
	AvatarURL           *string `json:"avatar_url" validate:"omitempty,url"`
	OnboardingCompleted *bool   `json:"onboarding_completed"`
}

// UpdateProfile applies profile edits for a user.
func (s *AuthService) UpdateProfile(userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if update.Username != nil && *update.Username != user.Username {
		if existing, err := s.userRepo.GetByUsername(*update.Username); err == nil && existing != nil {
			return nil, fmt.Errorf("username '%s' already taken", *update.Username)
		}
		user.Username = *update.Username
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.OnboardingCompleted != nil {
		user.OnboardingCompleted = *update.OnboardingCompleted
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user.Password = ""
	return user, nil
}
