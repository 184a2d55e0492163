// Command migrate brings the schema up to date and can promote an account to
// admin:
//
//	go run ./cmd/tools/migrate
//	go run ./cmd/tools/migrate -promote ops@shirly.shop
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"shirly.shop/app/internal/config"
	"shirly.shop/app/internal/db"
	"shirly.shop/app/internal/modules/auth"
)

func main() {
	promote := flag.String("promote", "", "email of an existing user to make admin")
	demote := flag.String("demote", "", "email of an admin to make a customer")
	skip := flag.Bool("skip-migrate", false, "only change roles")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	gdb, err := db.Open(cfg.DB, logger)
	if err != nil {
		log.Fatal(err)
	}

	if !*skip {
		start := time.Now()
		if err := db.Migrate(gdb); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		fmt.Printf("schema up to date (%d tables, %s)\n", len(db.Models()), time.Since(start).Round(time.Millisecond))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	users := auth.NewService(gdb, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	changes := []struct{ email, role string }{
		{*promote, auth.RoleAdmin},
		{*demote, auth.RoleCustomer},
	}
	for _, ch := range changes {
		if ch.email == "" {
			continue
		}
		if err := users.SetRole(ctx, ch.email, ch.role); err != nil {
			log.Fatalf("set role of %s: %v", ch.email, err)
		}
		fmt.Printf("%s is now %s\n", ch.email, ch.role)
	}
}
