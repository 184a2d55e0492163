package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLen = 8

// dummyHash keeps login timing similar for unknown emails.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type Service struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{db: db, secret: []byte(secret), ttl: ttl, logger: slog.Default(), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) SetLogger(l *slog.Logger) { s.logger = l }

type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (User, error) {
	email := normalizeEmail(in.Email)
	if len(in.Password) < minPasswordLen {
		return User{}, ErrWeakPassword
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return User{}, err
	}
	if existing > 0 {
		return User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if isDup(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user signed up", "user_id", u.ID)
	return u, nil
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	SessionID string
	User      User
}

func (s *Service) Login(ctx context.Context, email, password, userAgent string) (LoginResult, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, "email = ?", normalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now()
	sess := Session{
		ID:         uuid.NewString(),
		UserID:     u.ID,
		UserAgent:  truncate(userAgent, 255),
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	token, err := signToken(s.secret, u.ID, sess.ID, u.Role, now, sess.ExpiresAt)
	if err != nil {
		return LoginResult{}, err
	}
	sess.TokenHash = hashToken(token)
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, SessionID: sess.ID, User: u}, nil
}

// Identity is the authenticated principal behind a request.
type Identity struct {
	User      User
	SessionID string
}

func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := parseToken(s.secret, token)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}

	var sess Session
	if err := s.db.WithContext(ctx).
		First(&sess, "id = ? AND expires_at > ?", claims.SessionID, s.now()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, err
	}
	if sess.UserID != claims.Subject || subtle.ConstantTimeCompare(sess.TokenHash, hashToken(token)) != 1 {
		return Identity{}, ErrUnauthenticated
	}

	var u User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", sess.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, err
	}

	if s.now().Sub(sess.LastSeenAt) > time.Minute {
		_ = s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", sess.ID).Update("last_seen_at", s.now()).Error
	}
	return Identity{User: u, SessionID: sess.ID}, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Delete(&Session{}, "id = ?", sessionID).Error
}

func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

type ProfileInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (User, error) {
	upd := map[string]any{"updated_at": s.now()}
	if in.FirstName != nil {
		upd["first_name"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		upd["last_name"] = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		upd["phone"] = strings.TrimSpace(*in.Phone)
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(upd).Error; err != nil {
		return User{}, err
	}
	return s.Get(ctx, userID)
}

// ChangePassword verifies the current password, stores the new hash and revokes every
// other session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID, currentSessionID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&User{}).Where("id = ?", userID).
			Updates(map[string]any{"password_hash": string(hash), "updated_at": s.now()}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND id <> ?", userID, currentSessionID).Delete(&Session{}).Error
	})
}

// SetRole is used by operator tooling to promote or demote accounts.
func (s *Service) SetRole(ctx context.Context, email, role string) error {
	if role != RoleAdmin && role != RoleCustomer {
		return errors.New("unknown role")
	}
	res := s.db.WithContext(ctx).Model(&User{}).
		Where("email = ?", normalizeEmail(email)).
		Updates(map[string]any{"role": role, "updated_at": s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DisplayNames resolves user ids to display names; unknown ids are omitted.
func (s *Service) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []User
	if err := s.db.WithContext(ctx).
		Select("id", "email", "first_name", "last_name").
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.DisplayName()
	}
	return out, nil
}

func (s *Service) PruneExpiredSessions(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&Session{})
	return res.RowsAffected, res.Error
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func isDup(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
