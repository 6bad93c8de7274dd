package db

import (
	"context"
	"crypto/subtle"
	"equipment_lending/models"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Repo struct {
	DB *gorm.DB
	// bcrypt cost for new passwords; 0 means bcrypt.DefaultCost
	PasswordCost int
}

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Users

// CreateUser 规范化邮箱、哈希密码后入库
func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" || u.Password == "" {
		return ErrMissingFields
	}
	u.Role = strings.ToUpper(strings.TrimSpace(u.Role))
	switch u.Role {
	case "":
		u.Role = models.RoleStudent
	case models.RoleStudent, models.RoleAdmin:
	default:
		return ErrInvalidRole
	}

	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", u.Email).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return EmailExistsError(u.Email)
	}

	hash, err := r.hashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hash
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		// 并发注册时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return EmailExistsError(u.Email)
		}
		return err
	}
	return nil
}

func (r *Repo) hashPassword(plain string) (string, error) {
	cost := r.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// passwordMatches accepts bcrypt hashes and legacy plaintext rows.
func passwordMatches(stored, plain string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
}

func (r *Repo) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := r.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !passwordMatches(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (r *Repo) TouchUserLogin(ctx context.Context, userID uint, ip, ua string) error {
	now := time.Now().UTC()
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"last_seen_at":  now,
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", time.Now().UTC()).Error
}

// 按 ID 查
func (r *Repo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// 列表（分页 + 关键词，关键词匹配姓名/邮箱）
type ListUsersResult struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

// size <= 0 returns every matching user.
func (r *Repo) ListUsers(ctx context.Context, q string, page, size int) (ListUsersResult, error) {
	if page <= 0 {
		page = 1
	}
	if size > 100 {
		size = 100
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		if q = strings.TrimSpace(q); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			tx = tx.Where("LOWER(name) LIKE ? OR email LIKE ?", like, like)
		}
		return tx
	}

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Scopes(filter).Count(&total).Error; err != nil {
		return ListUsersResult{}, err
	}

	tx := r.DB.WithContext(ctx).Scopes(filter).Order("id ASC")
	if size > 0 {
		tx = tx.Offset((page - 1) * size).Limit(size)
	}
	users := []models.User{}
	if err := tx.Find(&users).Error; err != nil {
		return ListUsersResult{}, err
	}
	return ListUsersResult{Users: users, Total: total}, nil
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&n).Error
	return n, err
}
