package services

import (
	"context"
	"errors"
	"time"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/config"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/models"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/services/dto"
	"mmh_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type AuthService interface {
	Register(ctx context.Context, db *gorm.DB, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error)
	VerifyEmail(ctx context.Context, db *gorm.DB, req *dto.VerifyEmailRequest) (*dto.AuthResponse, error)
	ForgotPassword(ctx context.Context, db *gorm.DB, req *dto.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, db *gorm.DB, userID string, req *dto.ResetPasswordRequest) error
	Refresh(ctx context.Context, db *gorm.DB, refreshToken string) (*dto.AuthResponse, error)
	Me(ctx context.Context, db *gorm.DB, userID string) (*models.User, error)
}

type AuthServiceImpl struct {
	userRepo    repositories.UserRepository
	userService UserService
	verifier    CompanyVerifier
	notifier    NotificationService
	tokens      *auth.TokenManager
	cfg         config.AuthConfig
	runAsync    AsyncRunner
	now         func() time.Time
}

func NewAuthService(
	userRepo repositories.UserRepository,
	userService UserService,
	verifier CompanyVerifier,
	notifier NotificationService,
	tokens *auth.TokenManager,
	cfg config.AuthConfig,
	runAsync AsyncRunner,
) AuthService {
	if runAsync == nil {
		runAsync = GoRunner
	}
	return &AuthServiceImpl{
		userRepo:    userRepo,
		userService: userService,
		verifier:    verifier,
		notifier:    notifier,
		tokens:      tokens,
		cfg:         cfg,
		runAsync:    runAsync,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a Pending user after checking the company against the
// business registry, then mails a verification link.
func (s *AuthServiceImpl) Register(ctx context.Context, db *gorm.DB, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if !req.Role.CanSelfRegister() {
		return nil, apperrors.FieldError("role", "Must be agency or media")
	}

	if _, err := s.userRepo.FindByEmail(db, req.Email); err == nil {
		return nil, apperrors.ErrEmailAlreadyExists
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, apperrors.InternalError(err)
	}

	// The registry is asked before any transaction is opened.
	result, err := s.verifier.Verify(ctx, req.ICO, req.CompanyName, req.Email)
	if err != nil {
		return nil, apperrors.ErrCompanyVerificationUnavailable.WithError(err)
	}
	if !result.Valid {
		if result.Field == "ico" {
			return nil, apperrors.ErrCompanyNotFound
		}
		return nil, apperrors.ErrCompanyMismatch.
			WithMessage(result.Reason).
			WithDetails(map[string]string{result.Field: result.Reason})
	}

	hash, err := auth.HashIfNeeded(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	plain, digest := auth.NewOpaqueToken()
	expiresAt := s.now().Add(s.cfg.VerificationTTL)

	user := &models.User{
		Email:                 req.Email,
		PasswordHash:          hash,
		Role:                  req.Role,
		Status:                models.UserStatusPending,
		CompanyName:           result.CompanyName,
		ContactName:           req.ContactName,
		Phone:                 req.Phone,
		ICO:                   req.ICO,
		VerificationTokenHash: digest,
		VerificationTokenExp:  &expiresAt,
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	if err := s.userRepo.Create(tx, user); err != nil {
		return nil, handleUserError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "User registered", "user_id", user.ID, "role", user.Role)

	bg := context.WithoutCancel(ctx)
	s.runAsync(func() {
		s.notifier.SendVerificationEmail(bg, user, plain, expiresAt)
	})

	resp := &dto.AuthResponse{
		Success: true,
		Message: "Registration successful. Check your inbox to verify your email.",
		UserID:  user.ID,
	}
	if !s.cfg.RequireVerifiedEmail {
		if err := s.attachTokens(resp, user); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userService.VerifyCredential(ctx, db, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.checkUserStatus(user); err != nil {
		return nil, err
	}

	resp := &dto.AuthResponse{
		Success: true,
		Message: "Login successful",
		UserID:  user.ID,
		User:    dto.NewUserSummary(user),
	}
	if err := s.attachTokens(resp, user); err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, "User logged in", "user_id", user.ID)
	return resp, nil
}

// VerifyEmail consumes a single-use token. Signup tokens confirm the address;
// recovery tokens also start a session so the password can be reset.
func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, db *gorm.DB, req *dto.VerifyEmailRequest) (*dto.AuthResponse, error) {
	digest := auth.HashOpaqueToken(req.Token)
	now := s.now()

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	var (
		user *models.User
		err  error
	)
	switch req.Type {
	case dto.VerifyTypeSignup:
		user, err = s.userRepo.FindByVerificationToken(tx, digest)
	case dto.VerifyTypeRecovery:
		user, err = s.userRepo.FindByResetToken(tx, digest)
	default:
		return nil, apperrors.FieldError("type", "Must be signup or recovery")
	}
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.InternalError(err)
	}

	if req.Type == dto.VerifyTypeSignup {
		if expired(user.VerificationTokenExp, now) {
			return nil, apperrors.ErrInvalidToken
		}
		user.VerificationTokenHash = ""
		user.VerificationTokenExp = nil
	} else {
		if expired(user.ResetTokenExp, now) {
			return nil, apperrors.ErrInvalidToken
		}
		if user.Status == models.UserStatusSuspended {
			return nil, apperrors.ErrUserSuspended
		}
		user.ResetTokenHash = ""
		user.ResetTokenExp = nil
	}

	// Either token proves control of the mailbox.
	if user.Status == models.UserStatusPending {
		user.Status = models.UserStatusVerified
	}
	if user.EmailVerifiedAt == nil {
		user.EmailVerifiedAt = &now
	}

	if err := s.userRepo.Update(tx, user); err != nil {
		return nil, handleUserError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Email token consumed", "user_id", user.ID, "type", req.Type)

	if req.Type == dto.VerifyTypeSignup {
		return &dto.AuthResponse{Success: true, Message: "Email verified", UserID: user.ID}, nil
	}

	resp := &dto.AuthResponse{
		Success: true,
		Message: "Recovery confirmed. Set a new password.",
		UserID:  user.ID,
		User:    dto.NewUserSummary(user),
	}
	if err := s.attachTokens(resp, user); err != nil {
		return nil, err
	}
	return resp, nil
}

// ForgotPassword mails a recovery link. It reports success whether or not
// the address is known.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, db *gorm.DB, req *dto.ForgotPasswordRequest) error {
	tx := db.Begin()
	if tx.Error != nil {
		return apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	user, err := s.userRepo.FindByEmail(tx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			logger.CtxDebug(ctx, "Password recovery for unknown email")
			return nil
		}
		return apperrors.InternalError(err)
	}
	if user.Status == models.UserStatusSuspended {
		logger.CtxInfo(ctx, "Password recovery requested by suspended user", "user_id", user.ID)
		return nil
	}

	plain, digest := auth.NewOpaqueToken()
	expiresAt := s.now().Add(s.cfg.ResetTTL)
	user.ResetTokenHash = digest
	user.ResetTokenExp = &expiresAt

	if err := s.userRepo.Update(tx, user); err != nil {
		return handleUserError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return apperrors.InternalError(err)
	}

	bg := context.WithoutCancel(ctx)
	s.runAsync(func() {
		s.notifier.SendPasswordReset(bg, user, plain, expiresAt)
	})
	return nil
}

func (s *AuthServiceImpl) ResetPassword(ctx context.Context, db *gorm.DB, userID string, req *dto.ResetPasswordRequest) error {
	if req.NewPassword != req.ConfirmPassword {
		return apperrors.ErrPasswordsDoNotMatch
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		return apperrors.FieldError("newPassword", err.Error())
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apperrors.InternalError(err)
	}

	tx := db.Begin()
	if tx.Error != nil {
		return apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	user, err := s.userRepo.FindByID(tx, userID)
	if err != nil {
		return handleUserError(err)
	}
	if user.Status == models.UserStatusSuspended {
		return apperrors.ErrUserSuspended
	}

	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetTokenExp = nil
	if err := s.userRepo.Update(tx, user); err != nil {
		return handleUserError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Password changed", "user_id", user.ID)
	return nil
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, db *gorm.DB, refreshToken string) (*dto.AuthResponse, error) {
	claims, err := s.tokens.ParseToken(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		logger.CtxDebug(ctx, "Refresh token rejected", "error", err)
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(db, claims.UserID())
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.InternalError(err)
	}
	if err := s.checkUserStatus(user); err != nil {
		return nil, err
	}

	resp := &dto.AuthResponse{Success: true, Message: "Token refreshed", UserID: user.ID}
	if err := s.attachTokens(resp, user); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AuthServiceImpl) Me(ctx context.Context, db *gorm.DB, userID string) (*models.User, error) {
	return s.userService.GetByID(ctx, db, userID)
}

func (s *AuthServiceImpl) checkUserStatus(user *models.User) error {
	switch user.Status {
	case models.UserStatusSuspended:
		return apperrors.ErrUserSuspended
	case models.UserStatusPending:
		if s.cfg.RequireVerifiedEmail {
			return apperrors.ErrUserNotVerified
		}
	}
	return nil
}

func (s *AuthServiceImpl) attachTokens(resp *dto.AuthResponse, user *models.User) error {
	pair, err := s.tokens.IssuePair(user.ID, user.Email, string(user.Role))
	if err != nil {
		return apperrors.InternalError(err)
	}
	resp.AccessToken = pair.AccessToken
	resp.RefreshToken = pair.RefreshToken
	resp.ExpiresAt = &pair.ExpiresAt
	return nil
}

func expired(exp *time.Time, now time.Time) bool {
	return exp == nil || now.After(*exp)
}
