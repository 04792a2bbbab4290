package api

import "time"

// ProfileResponse представляет профиль текущего пользователя
type ProfileResponse struct {
	CreatedAt time.Time           `json:"created_at"`
	ID        string              `json:"id"`
	Login     string              `json:"login"`
	Email     string              `json:"email,omitempty"`
	FirstName string              `json:"first_name,omitempty"`
	LastName  string              `json:"last_name,omitempty"`
	Roles     []string            `json:"roles"`
	Links     []OAuthLinkResponse `json:"oauth_links"`
	Devices   []DeviceResponse    `json:"devices"`
}

// UpdateProfileRequest представляет частичное изменение профиля
// Отсутствующие поля не меняются, пустой email удаляет его
// Смена логина или пароля закрывает все сессии
type UpdateProfileRequest struct {
	Login     *string `json:"login,omitempty" validate:"omitnil,login"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Password  *string `json:"password,omitempty" validate:"omitnil,password"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

// DeviceResponse представляет устройство, с которого выполнялся вход
type DeviceResponse struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
}

// OAuthLinkResponse представляет привязанный аккаунт провайдера
type OAuthLinkResponse struct {
	CreatedAt      time.Time `json:"created_at"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
}

// HistoryEntry представляет одну запись журнала входов
type HistoryEntry struct {
	CreatedAt time.Time `json:"created_at"`
	DeviceID  *string   `json:"device_id"` // nil если запись не связана с сессией
	Action    string    `json:"action"`
	IP        string    `json:"ip"`
}

// HistoryResponse представляет страницу журнала входов, новые записи первыми
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
}

// OAuthProfileResponse представляет профиль провайдера после привязки
type OAuthProfileResponse struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"user_id"`
	Email          string `json:"email,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version,omitempty"`
	Failed  []string `json:"failed,omitempty"` // недоступные зависимости
}
