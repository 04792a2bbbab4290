package models

import "time"

// SuperuserLogin зарезервированный login администратора, обходит проверку ролей
const SuperuserLogin = "superuser"

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time `json:"created_at"` // время создания
	UpdatedAt    time.Time `json:"updated_at"` // время последнего обновления
	ID           string    `json:"id"`         // UUID пользователя
	Login        string    `json:"login"`      // уникальный login
	Email        string    `json:"email"`      // уникальный email
	PasswordHash string    `json:"-"`          // argon2id хеш пароля в формате PHC
	FirstName    string    `json:"first_name"` // имя
	LastName     string    `json:"last_name"`  // фамилия
	IsActive     bool      `json:"is_active"`  // false после удаления аккаунта
}

// Device представляет клиента пользователя, определяемого по user-agent
type Device struct {
	CreatedAt time.Time `json:"created_at"` // время первого входа с устройства
	ID        string    `json:"id"`         // UUID устройства
	UserID    string    `json:"user_id"`    // ID пользователя
	UserAgent string    `json:"user_agent"` // user-agent клиента
}

// RefreshToken представляет текущий refresh token устройства
// У устройства не больше одной записи, при ротации строка токена перезаписывается
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время выпуска текущего токена
	ID        string    `json:"id"`         // UUID записи, не меняется при ротации
	UserID    string    `json:"user_id"`    // ID пользователя
	DeviceID  string    `json:"device_id"`  // ID устройства
	Token     string    `json:"-"`          // строка refresh токена
}

// Role представляет роль пользователя
type Role struct {
	ID    string `json:"id"`    // UUID роли
	Title string `json:"title"` // уникальное название
}
