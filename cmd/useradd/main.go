// Command useradd creates an account that can obtain tokens from the API.
//
//	useradd -username alex@gmail.com -name Alex -password 123456 -roles ROLE_CLIENT
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/dsmovie/internal/auth"
	"github.com/Clark-Hu/dsmovie/internal/config"
	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/logging"
	"github.com/Clark-Hu/dsmovie/internal/repository"
	"github.com/Clark-Hu/dsmovie/internal/store"
)

func main() {
	var (
		username = flag.String("username", "", "login name (usually an email)")
		name     = flag.String("name", "", "display name")
		password = flag.String("password", os.Getenv("USERADD_PASSWORD"), "plaintext password, defaults to $USERADD_PASSWORD")
		roles    = flag.String("roles", domain.RoleClient, "comma separated roles")
	)
	flag.Parse()

	logger, err := logging.New("info")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logging.Component(logger, "useradd")

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *name == "" {
		*name = *username
	}

	granted, err := parseRoles(*roles)
	if err != nil {
		logger.Fatal("invalid roles", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:               1,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer st.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		logger.Fatal("hash password", zap.Error(err))
	}

	user, err := repository.New(st).Users.Create(ctx, repository.UserCreateParams{
		Name:         *name,
		Username:     *username,
		PasswordHash: hash,
		Roles:        granted,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			logger.Fatal("username already taken", zap.String("username", *username))
		}
		logger.Fatal("create user", zap.Error(err))
	}

	logger.Info("user created",
		zap.Int64("id", user.ID),
		zap.String("username", user.Username),
		zap.Strings("roles", user.Roles),
	)
}

func parseRoles(raw string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		role := strings.ToUpper(strings.TrimSpace(part))
		if role == "" {
			continue
		}
		switch role {
		case domain.RoleAdmin, domain.RoleClient:
			out = append(out, role)
		default:
			return nil, errors.New("unknown role " + role)
		}
	}
	return out, nil
}
