package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Payments PaymentsConfig `yaml:"payments"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	SeatHoldTTLMinutes   int `yaml:"seat_hold_ttl_minutes"`
	TripsCacheTTLSeconds int `yaml:"trips_cache_ttl_seconds"`
	PaymentTTLMinutes    int `yaml:"payment_ttl_minutes"`
}

type WorkerConfig struct {
	ExpirationSweepMinutes int `yaml:"expiration_sweep_minutes"`
}

type PaymentsConfig struct {
	Provider string       `yaml:"provider"`
	MTN      MTNConfig    `yaml:"mtn"`
	Airtel   AirtelConfig `yaml:"airtel"`
}

type MTNConfig struct {
	BaseURL         string `yaml:"base_url"`
	SubscriptionKey string `yaml:"subscription_key"`
	APIUser         string `yaml:"api_user"`
	APIKey          string `yaml:"api_key"`
	TargetEnv       string `yaml:"target_env"`
	Currency        string `yaml:"currency"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	TokenTTLSeconds int    `yaml:"token_ttl_seconds"`
}

func (m MTNConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (m MTNConfig) TokenTTL() time.Duration {
	return time.Duration(m.TokenTTLSeconds) * time.Second
}

type AirtelConfig struct {
	BaseURL         string `yaml:"base_url"`
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	Country         string `yaml:"country"`
	Currency        string `yaml:"currency"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	TokenTTLSeconds int    `yaml:"token_ttl_seconds"`
}

func (a AirtelConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func (a AirtelConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLSeconds) * time.Second
}

type NotifyConfig struct {
	SMSURL    string `yaml:"sms_url"`
	SMSAPIKey string `yaml:"sms_api_key"`
	SMSSender string `yaml:"sms_sender"`
	EmailFrom string `yaml:"email_from"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
