package utils

import (
	"regexp"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	numericPattern  = regexp.MustCompile(`^[0-9]+$`)
)

// HashPassword 使用 bcrypt 对密码进行哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword 验证密码; an empty hash never matches
func CheckPassword(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// ValidateUserName 验证用户名格式（1-150个字符，字母数字及 @.+-_）
func ValidateUserName(username string) bool {
	n := utf8.RuneCountInString(username)
	return n >= 1 && n <= 150 && usernamePattern.MatchString(username)
}

// ValidatePassword 验证密码强度（至少8个字符，且不能全为数字）
func ValidatePassword(password string) bool {
	return utf8.RuneCountInString(password) >= 8 && !numericPattern.MatchString(password)
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}
