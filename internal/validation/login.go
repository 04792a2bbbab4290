package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LoginPattern определяет допустимый формат login
// Латинские буквы, цифры, дефис и нижнее подчеркивание, длина 5-50 символов
var LoginPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{5,50}$`)

const (
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 5
	// MaxPasswordLen максимальная длина пароля
	MaxPasswordLen = 50
)

// ValidateLogin проверяет, что login соответствует требованиям
func ValidateLogin(login string) error {
	if login == "" {
		return fmt.Errorf("login cannot be empty")
	}

	if !LoginPattern.MatchString(login) {
		return fmt.Errorf("login must be 5-50 characters of letters, digits, '-' or '_'")
	}

	return nil
}

// ValidatePassword проверяет длину пароля
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d characters", MaxPasswordLen)
	}

	return nil
}

// New создает validator с зарегистрированными тегами login и password
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В сообщениях используем имена полей из json тегов
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Ошибки регистрации возможны только при пустом теге
	_ = v.RegisterValidation("login", func(fl validator.FieldLevel) bool {
		return ValidateLogin(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String()) == nil
	})

	return v
}

// Message преобразует ошибку validator в читаемое сообщение для клиента
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "login":
		return "login must be 5-50 characters of letters, digits, '-' or '_'"
	case "password":
		return fmt.Sprintf("password must be %d-%d characters long", MinPasswordLen, MaxPasswordLen)
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
