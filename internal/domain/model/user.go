// Пакет model — доменные модели topicstore.
package model

// User — учётная запись пользователя.
type User struct {
	// ID — суррогатный ключ, назначается базой данных
	ID int64
	// Username — глобально уникальное имя пользователя (case-sensitive)
	Username string
	// HashedPassword — PBKDF2-дайджест пароля, plaintext не хранится
	HashedPassword string
}
