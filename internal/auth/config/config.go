package config

// APIKey - общий секрет вызывающей стороны. Пустое значение закрывает доступ полностью.
type Config struct {
	APIKey string
}
