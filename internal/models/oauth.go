package models

import "time"

// OAuthLink связывает аккаунт внешнего провайдера с локальным пользователем
type OAuthLink struct {
	CreatedAt      time.Time `json:"created_at"`       // время привязки
	ID             string    `json:"id"`               // UUID связи
	UserID         string    `json:"user_id"`          // ID пользователя
	Provider       string    `json:"provider"`         // имя провайдера (yandex, vk)
	ProviderUserID string    `json:"provider_user_id"` // ID пользователя у провайдера
}

// UserHistory запись журнала входов, только добавляется
type UserHistory struct {
	CreatedAt time.Time `json:"created_at"`          // время события
	DeviceID  *string   `json:"device_id,omitempty"` // ID устройства, nil если запись не связана с сессией
	ID        string    `json:"id"`                  // UUID записи
	UserID    string    `json:"user_id"`             // ID пользователя
	Action    string    `json:"action"`              // например "login" или "login via yandex"
	IP        string    `json:"ip"`                  // адрес клиента
}
