// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	AppBaseURL              string        `yaml:"app_base_url" env:"APP_BASE_URL" env-default:"http://localhost:3000"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Stripe                  `yaml:"stripe"`
	Email                   `yaml:"email"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"24h"`
	// PasswordSignInDisabled запрещает вход и регистрацию по паролю.
	PasswordSignInDisabled bool `yaml:"password_sign_in_disabled" env:"PASSWORD_SIGN_IN_DISABLED" env-default:"false"`
}

// Stripe настройки платежного провайдера.
//
// Значения по умолчанию намеренно не заданы: отсутствие ключа или цены
// приводит к ошибке конфигурации во время запроса.
type Stripe struct {
	SecretKey          string        `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	PublishableKey     string        `yaml:"publishable_key" env:"STRIPE_PUBLISHABLE_KEY"`
	MonthlyPriceID     string        `yaml:"monthly_price_id" env:"STRIPE_MONTHLY_PRICE_ID"`
	SemiannualPriceID  string        `yaml:"semiannual_price_id" env:"STRIPE_SEMIANNUAL_PRICE_ID"`
	APIURL             string        `yaml:"api_url" env:"STRIPE_API_URL"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures" env:"STRIPE_BREAKER_MAX_FAILURES" env-default:"5"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout" env:"STRIPE_BREAKER_TIMEOUT" env-default:"30s"`
}

// Email настройки SMTP-релея для транзакционных писем.
type Email struct {
	Sender   string `yaml:"sender" env:"EMAIL_SENDER"`
	Password string `yaml:"password" env:"EMAIL_PASSWORD"`
	SMTPHost string `yaml:"smtp_host" env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	SMTPPort int    `yaml:"smtp_port" env:"SMTP_PORT" env-default:"587"`
	FromName string `yaml:"from_name" env:"EMAIL_FROM_NAME" env-default:"Stack"`
}

// MustLoad функция для загрузки конфига.
//
// Сначала подхватываются .env.local и .env (если есть), затем yaml-файл из CONFIG_PATH.
// Если CONFIG_PATH не задан, конфиг собирается только из переменных окружения.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load загружает конфиг без завершения процесса.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg Config
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PriceIDs возвращает соответствие идентификатора плана и цены Stripe.
func (s Stripe) PriceIDs() map[string]string {
	return map[string]string{
		"monthly_basic":    s.MonthlyPriceID,
		"semiannual_basic": s.SemiannualPriceID,
	}
}

// Configured сообщает, заданы ли учетные данные SMTP.
func (e Email) Configured() bool {
	return e.Sender != "" && e.Password != ""
}

func mask(s string) string {
	if s == "" {
		return "<empty>"
	}
	return "***"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"RabbitMQURL: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Stripe:\n"+
			"  SecretKey: %s\n"+
			"  PublishableKey: %s\n"+
			"  MonthlyPriceID: %s\n"+
			"  SemiannualPriceID: %s\n"+
			"Email:\n"+
			"  Sender: %s\n"+
			"  Password: %s\n"+
			"  SMTP: %s:%d\n",
		c.Env,
		mask(c.StorageConnectionString),
		mask(c.RabbitMQURL),
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		mask(c.SecretKey),
		c.PublishableKey,
		c.MonthlyPriceID,
		c.SemiannualPriceID,
		c.Sender,
		mask(c.Email.Password),
		c.SMTPHost,
		c.SMTPPort,
	)
}
