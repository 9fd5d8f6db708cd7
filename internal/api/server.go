package api

import (
	"log"
	"os"
	"strings"

	"doceria/internal/auth"
	"doceria/internal/mercadopago"
	"doceria/internal/notify"
	"doceria/internal/store"
)

// Config carries everything the server needs; handlers never read the
// process environment so tests can inject fakes.
type Config struct {
	DatabaseURL string
	DBMigrate   bool
	RedisURL    string

	WebhookSecret string // Mercado Pago webhook shared secret
	AccessToken   string // Mercado Pago API bearer token
	MPBaseURL     string

	TelegramBotToken string
	TelegramChatID   string

	PixKey          string
	PixMerchantName string
	PixMerchantCity string

	PublicBaseURL string

	AuthMode       string
	AuthHMACSecret string
	AuthJWKSURL    string

	NotifyMaxAttempts string
}

// ConfigFromEnv reads configuration once at startup. Secrets are never
// logged; only the webhook secret length is surfaced for diagnostics.
func ConfigFromEnv() Config {
	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMigrate:         os.Getenv("DB_MIGRATE") != "false",
		RedisURL:          os.Getenv("REDIS_URL"),
		WebhookSecret:     os.Getenv("MP_WEBHOOK_SECRET"),
		AccessToken:       os.Getenv("MP_ACCESS_TOKEN"),
		MPBaseURL:         os.Getenv("MP_BASE_URL"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		PixKey:            os.Getenv("PIX_KEY"),
		PixMerchantName:   os.Getenv("PIX_MERCHANT_NAME"),
		PixMerchantCity:   os.Getenv("PIX_MERCHANT_CITY"),
		PublicBaseURL:     os.Getenv("PUBLIC_BASE_URL"),
		AuthMode:          os.Getenv("AUTH_MODE"),
		AuthHMACSecret:    os.Getenv("AUTH_HMAC_SECRET"),
		AuthJWKSURL:       os.Getenv("AUTH_JWKS_URL"),
		NotifyMaxAttempts: os.Getenv("NOTIFY_MAX_ATTEMPTS"),
	}
	log.Printf("config: webhook secret length=%d, db=%v, redis=%v",
		len(cfg.WebhookSecret), cfg.DatabaseURL != "", cfg.RedisURL != "")
	return cfg
}

type Server struct {
	Cfg      Config
	Store    store.Store
	MP       *mercadopago.Client
	Auth     *auth.Verifier
	Broker   EventBroker
	Notifier *notify.Telegram
}

// New creates a Server. If DatabaseURL is unset, uses the in-memory store.
func New(cfg Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if cfg.DBMigrate {
			_ = sp.MigrateDir("db/migrations")
		}
		s = sp
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	return &Server{
		Cfg:      cfg,
		Store:    s,
		MP:       mercadopago.NewClient(cfg.MPBaseURL, cfg.AccessToken),
		Auth:     auth.NewVerifier(cfg.AuthMode, cfg.AuthHMACSecret, cfg.AuthJWKSURL),
		Broker:   broker,
		Notifier: notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID),
	}, nil
}

// NewNotifyWorker creates the background worker for queued order notifications.
func (s *Server) NewNotifyWorker() *notify.Worker {
	return notify.NewWorker(s.Store, s.Notifier, s.Cfg.NotifyMaxAttempts)
}

// publishOrderEvent fans an event out to per-order subscribers and the
// firehose feed the admin dashboard watches.
func (s *Server) publishOrderEvent(orderID string, evt SSEEvent) {
	s.Broker.Publish(orderID, evt)
	s.Broker.Publish(FeedAll, evt)
}
