package metadb

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"

	"archivecore.io/core/internal/domain"
)

func toUserRow(u domain.User) (UserRow, error) {
	attrs, err := json.Marshal(u.Attributes)
	if err != nil {
		return UserRow{}, err
	}
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	return UserRow{
		UserID:         u.UserID,
		Username:       u.Username,
		PasswordHash:   u.PasswordHash,
		Department:     u.Department,
		ClearanceLevel: int(u.ClearanceLevel),
		RolesCSV:       strings.Join(roles, ","),
		Email:          u.Email,
		Enabled:        u.Enabled,
		AttributesJSON: string(attrs),
		FailedLogins:   u.FailedLogins,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}, nil
}

func fromUserRow(r UserRow) (domain.User, error) {
	attrs := map[string]string{}
	if r.AttributesJSON != "" {
		if err := json.Unmarshal([]byte(r.AttributesJSON), &attrs); err != nil {
			return domain.User{}, err
		}
	}
	var roles []domain.Role
	if r.RolesCSV != "" {
		for _, r := range strings.Split(r.RolesCSV, ",") {
			roles = append(roles, domain.Role(r))
		}
	}
	return domain.User{
		UserID:         r.UserID,
		Username:       r.Username,
		PasswordHash:   r.PasswordHash,
		Department:     r.Department,
		ClearanceLevel: domain.Confidentiality(r.ClearanceLevel),
		Roles:          roles,
		Email:          r.Email,
		Enabled:        r.Enabled,
		Attributes:     attrs,
		FailedLogins:   r.FailedLogins,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

// GetUser returns the user identified by userID, satisfying
// authcore.UserStore.
func (d *DB) GetUser(userID string) (domain.User, error) {
	var row UserRow
	if err := d.gdb.First(&row, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return fromUserRow(row)
}

// GetUserByUsername returns the user identified by username.
func (d *DB) GetUserByUsername(username string) (domain.User, error) {
	var row UserRow
	if err := d.gdb.First(&row, "username = ?", username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return fromUserRow(row)
}

// CreateUser inserts a new user row, failing with domain.ErrUserExists
// on a username collision.
func (d *DB) CreateUser(u domain.User) error {
	row, err := toUserRow(u)
	if err != nil {
		return err
	}
	if err := d.gdb.Create(&row).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return domain.ErrUserExists
		}
		return err
	}
	return nil
}

// UpdateUser persists every mutable field of u, used after login
// attempts (FailedLogins) and profile changes.
func (d *DB) UpdateUser(u domain.User) error {
	row, err := toUserRow(u)
	if err != nil {
		return err
	}
	return d.gdb.Save(&row).Error
}
