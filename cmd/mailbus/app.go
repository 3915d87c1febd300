package main

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/auth"
	"github.com/quantonganh/mailbus/bolt"
	"github.com/quantonganh/mailbus/dispatch"
	"github.com/quantonganh/mailbus/http"
	"github.com/quantonganh/mailbus/notify"
	"github.com/quantonganh/mailbus/postgres"
	"github.com/quantonganh/mailbus/postmark"
	"github.com/quantonganh/mailbus/redis"
	"github.com/quantonganh/mailbus/resend"
	"github.com/quantonganh/mailbus/ses"
	"github.com/quantonganh/mailbus/smtp"
	"github.com/quantonganh/mailbus/sqlite"
)

type storage struct {
	db            mailbus.Database
	subscriptions mailbus.SubscriptionService
	users         mailbus.UserService
}

// openStorage opens the configured backend, applying its migrations
func openStorage(config *mailbus.Config) (*storage, error) {
	var s storage
	switch config.DB.Type {
	case "", "sqlite":
		db := sqlite.NewDB(config.DB.Path)
		s = storage{db: db, subscriptions: sqlite.NewSubscriptionService(db), users: sqlite.NewUserService(db)}
	case "postgres":
		db := postgres.NewDB(config.DB.DSN, config.DB.MaxConnections)
		s = storage{db: db, subscriptions: postgres.NewSubscriptionService(db), users: postgres.NewUserService(db)}
	case "bolt":
		db := bolt.NewDB(config.DB.Path)
		s = storage{db: db, subscriptions: bolt.NewSubscriptionService(db), users: bolt.NewUserService(db)}
	default:
		return nil, fmt.Errorf("unknown database type %q", config.DB.Type)
	}

	if err := s.db.Open(); err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.DB.Type, err)
	}
	return &s, nil
}

// newSender returns the delivery provider named in config
func newSender(ctx context.Context, config *mailbus.Config) (mailbus.EmailSender, error) {
	switch config.Email.Provider {
	case "", "smtp":
		return smtp.NewSender(config.SMTP.Host, config.SMTP.Port, config.SMTP.Username, config.SMTP.Password), nil
	case "postmark":
		return postmark.NewSender(config.Postmark.BaseURL, config.Postmark.Token, config.Email.Timeout), nil
	case "ses":
		return ses.NewSender(ctx, config.SES.Region, config.SES.AccessKey, config.SES.SecretKey)
	case "resend":
		return resend.NewSender(config.Resend.APIKey), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", config.Email.Provider)
}

func argon2Params(config *mailbus.Config) *auth.Params {
	p := auth.DefaultParams()
	if config.Auth.Argon2.Memory > 0 {
		p.Memory = config.Auth.Argon2.Memory
	}
	if config.Auth.Argon2.Iterations > 0 {
		p.Iterations = config.Auth.Argon2.Iterations
	}
	if config.Auth.Argon2.Parallelism > 0 {
		p.Parallelism = config.Auth.Argon2.Parallelism
	}
	return p
}

type app struct {
	config     *mailbus.Config
	storage    *storage
	httpServer *http.Server
	closers    []func() error
}

func newApp(config *mailbus.Config) *app {
	return &app{
		config: config,
	}
}

func (a *app) Run(ctx context.Context) error {
	var err error
	if a.storage, err = openStorage(a.config); err != nil {
		return err
	}

	sender, err := newSender(ctx, a.config)
	if err != nil {
		return err
	}

	gate, err := auth.NewGate(a.storage.users,
		auth.WithPool(auth.NewPool(a.config.Auth.Workers)),
		auth.WithParams(argon2Params(a.config)),
		auth.WithEqualizeTiming(a.config.Auth.EqualizeTiming),
	)
	if err != nil {
		return err
	}

	coordinator := dispatch.NewCoordinator(sender, a.config.Email.Sender)
	if a.config.Newsletter.BatchSize > 0 {
		coordinator.BatchSize = a.config.Newsletter.BatchSize
	}
	if a.config.Newsletter.BatchDelay > 0 {
		coordinator.BatchDelay = a.config.Newsletter.BatchDelay
	}
	coordinator.SendTimeout = a.config.Email.Timeout

	if a.httpServer, err = http.NewServer(log.Logger); err != nil {
		return err
	}
	a.httpServer.Addr = a.config.HTTP.Addr
	a.httpServer.Domain = a.config.HTTP.Domain
	a.httpServer.HMACSecret = a.config.Newsletter.HMAC.Secret
	a.httpServer.SubscriptionService = a.storage.subscriptions
	a.httpServer.AuthService = gate
	a.httpServer.PublishService = dispatch.NewPublisher(a.storage.subscriptions, coordinator)

	if a.config.RateLimit.Enabled && a.config.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, a.config.Redis.Addr, a.config.Redis.Password, a.config.Redis.DB)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.httpServer.Limiter = redis.NewLimiter(client, a.config.RateLimit.Limit, a.config.RateLimit.Window)
	}

	a.httpServer.Notifier = notify.NewNotifier(sender,
		a.config.Email.Sender,
		a.config.Newsletter.ProductName,
		baseURL(a.config),
		a.config.Newsletter.HMAC.Secret,
	)

	return a.httpServer.Open()
}

// baseURL is the public address put in the links of subscription emails
func baseURL(config *mailbus.Config) string {
	if config.HTTP.Domain != "" {
		return "https://" + config.HTTP.Domain
	}

	_, port, err := net.SplitHostPort(config.HTTP.Addr)
	if err != nil || port == "" || port == "80" {
		return "http://localhost"
	}
	return "http://localhost:" + port
}

func (a *app) Close() error {
	if a.httpServer != nil {
		if err := a.httpServer.Close(); err != nil {
			return err
		}
	}

	for _, closer := range a.closers {
		if err := closer(); err != nil {
			return err
		}
	}

	if a.storage != nil {
		if err := a.storage.db.Close(); err != nil {
			return err
		}
	}

	return nil
}
