package services

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/lperezmo/sms-helper/pkg/logger"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MaxFailedLoginAttempts is the number of failed attempts before the login locks
	MaxFailedLoginAttempts = 5

	// LockoutDuration is how long the admin login stays locked
	LockoutDuration = 30 * time.Minute
)

var (
	// ErrInvalidCredentials indicates authentication failure
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountLocked indicates the login is temporarily locked
	ErrAccountLocked = errors.New("account is locked due to too many failed login attempts")

	// ErrInvalidTOTP indicates TOTP code validation failure
	ErrInvalidTOTP = errors.New("invalid TOTP code")

	// ErrAdminDisabled means no admin password hash is configured
	ErrAdminDisabled = errors.New("admin login is not configured")
)

// AdminCredentials is the single operator account of the admin API
type AdminCredentials struct {
	Username     string
	PasswordHash string
	TOTPSecret   string
}

// AdminService checks admin logins against the configured account.
// Lockout state lives in memory and resets on restart.
type AdminService struct {
	creds AdminCredentials
	now   func() time.Time

	mu          sync.Mutex
	failed      int
	lockedUntil time.Time
}

// NewAdminService creates an admin service
func NewAdminService(creds AdminCredentials) *AdminService {
	return &AdminService{creds: creds, now: time.Now}
}

// Authenticate verifies username, bcrypt password and, when a TOTP secret is
// configured, the current TOTP code
func (s *AdminService) Authenticate(username, password, totpCode string) error {
	if s.creds.PasswordHash == "" {
		return ErrAdminDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Before(s.lockedUntil) {
		logger.Warn("Authentication failed - account locked",
			zap.String("username", username),
			zap.String("event_type", "account_locked"),
		)
		return ErrAccountLocked
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.creds.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(s.creds.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		s.recordFailure(now)
		logger.Warn("Authentication failed - invalid credentials",
			zap.String("username", username),
			zap.String("event_type", "failed_login"),
		)
		return ErrInvalidCredentials
	}

	if s.creds.TOTPSecret != "" {
		if totpCode == "" || !totp.Validate(totpCode, s.creds.TOTPSecret) {
			s.recordFailure(now)
			logger.Warn("Authentication failed - TOTP validation failed",
				zap.String("username", username),
				zap.String("event_type", "failed_totp_validation"),
			)
			return ErrInvalidTOTP
		}
	}

	s.failed = 0
	s.lockedUntil = time.Time{}

	logger.Info("Admin authenticated successfully",
		zap.String("username", username),
		zap.String("event_type", "successful_login"),
	)
	return nil
}

// recordFailure must be called with mu held
func (s *AdminService) recordFailure(now time.Time) {
	s.failed++
	if s.failed >= MaxFailedLoginAttempts {
		s.lockedUntil = now.Add(LockoutDuration)
		s.failed = 0
		logger.Warn("Admin login locked",
			zap.Time("locked_until", s.lockedUntil),
			zap.String("event_type", "account_locked"),
		)
	}
}
