// Package api содержит DTO HTTP API сервера авторизации
package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Login     string `json:"login" validate:"required,login"`                   // логин, 5-50 символов
	Email     string `json:"email,omitempty" validate:"omitempty,email"`        // email, необязателен
	Password  string `json:"password" validate:"required,password"`             // пароль, 5-50 символов
	FirstName string `json:"first_name,omitempty" validate:"omitempty,max=100"` // имя
	LastName  string `json:"last_name,omitempty" validate:"omitempty,max=100"`  // фамилия
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"` // UUID пользователя
	Message string `json:"message"` // сообщение об успешной регистрации
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`    // логин пользователя
	Password string `json:"password" validate:"required"` // пароль
}

// RefreshRequest представляет запрос на обновление токенов
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"` // текущий refresh token устройства
}

// LogoutRequest представляет запрос на выход
type LogoutRequest struct {
	Everywhere bool `json:"everywhere"` // выйти на всех устройствах
}

// TokenResponse представляет ответ с токенами доступа
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  // access token
	RefreshToken string `json:"refresh_token"` // refresh token
	ExpiresIn    int64  `json:"expires_in"`    // время жизни access token в секундах
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
