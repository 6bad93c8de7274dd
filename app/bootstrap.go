// app/bootstrap.go
package app

import (
	"context"
	"errors"

	"equipment_lending/db"
	"equipment_lending/models"

	"github.com/sirupsen/logrus"
)

// BootstrapFirstAdmin creates an ADMIN account from BOOTSTRAP_ADMIN_EMAIL /
// BOOTSTRAP_ADMIN_PASSWORD when no administrator exists yet.
func BootstrapFirstAdmin(ctx context.Context, cfg Config, repo *db.Repo, log *logrus.Logger) {
	if cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		return
	}
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		log.WithError(err).Error("bootstrap: count admins")
		return
	}
	if n > 0 {
		return // 已经有管理员，跳过
	}

	u := &models.User{
		Name:     "Administrator",
		Email:    cfg.BootstrapEmail,
		Password: cfg.BootstrapPassword,
		Role:     models.RoleAdmin,
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, db.ErrConflict) {
			log.WithField("email", cfg.BootstrapEmail).Warn("bootstrap: email already registered as a non-admin user")
			return
		}
		log.WithError(err).Error("bootstrap admin failed")
		return
	}
	log.WithFields(logrus.Fields{"id": u.ID, "email": u.Email}).Info("[BOOTSTRAP] created first admin")
}
