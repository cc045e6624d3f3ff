package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	BotToken string
	AdminIDs []int64

	FreeTextLimit  int
	FreeImageLimit int

	GoogleAPIKey string
	GeminiModel  string

	YooKassaShopID    string
	YooKassaSecretKey string
	PaymentReturnURL  string

	WebhookAddr string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	PostgresDSN string
}

func FromEnv() Config {
	return Config{
		BotToken: strings.TrimSpace(os.Getenv("TG_TOKEN")),
		AdminIDs: parseAdminIDs(os.Getenv("ADMIN_IDS")),

		FreeTextLimit:  getEnvInt("FREE_TEXT_LIMIT", 100),
		FreeImageLimit: getEnvInt("FREE_IMAGE_LIMIT", 1),

		GoogleAPIKey: strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:  getEnvDefault("GEMINI_MODEL", "gemini-2.0-flash"),

		YooKassaShopID:    strings.TrimSpace(os.Getenv("YOOKASSA_SHOP_ID")),
		YooKassaSecretKey: strings.TrimSpace(os.Getenv("YOOKASSA_SECRET_KEY")),
		PaymentReturnURL:  getEnvDefault("PAYMENT_RETURN_URL", "https://t.me"),

		WebhookAddr: getEnvDefault("WEBHOOK_ADDR", "0.0.0.0:8000"),
		RedisAddr:   getEnvDefault("REDIS_HOST", "localhost") + ":" + getEnvDefault("REDIS_PORT", "6379"),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
}

func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func parseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func getEnvDefault(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
