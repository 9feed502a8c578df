package apigw

import "time"

// Config содержит конфигурацию для API Gateway
type Config struct {
	// ListenAddress - адрес и порт для прослушивания (например, ":8080")
	ListenAddress string

	// TLSCertFile - путь к файлу SSL-сертификата (опционально, для включения HTTPS)
	TLSCertFile string

	// TLSKeyFile - путь к файлу приватного ключа SSL (опционально)
	TLSKeyFile string

	// ReadTimeout - таймаут на чтение всего запроса, включая тело
	ReadTimeout time.Duration

	// WriteTimeout - таймаут на запись всего ответа
	WriteTimeout time.Duration

	// MaxBodyBytes - ограничение размера тела запроса
	MaxBodyBytes int64

	// CORSAllowedOrigins - разрешенные источники для go-chi/cors. Пусто - CORS выключен.
	CORSAllowedOrigins []string

	// DecodeBase64Responses - отдавать клиенту сырые байты вместо base64
	DecodeBase64Responses bool

	// RejectParentSegments - отклонять ключи с сегментом ".."
	RejectParentSegments bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		ListenAddress:        ":8080",
		ReadTimeout:          30 * time.Second,
		WriteTimeout:         30 * time.Second,
		MaxBodyBytes:         10 << 20,
		RejectParentSegments: true,
	}
}
