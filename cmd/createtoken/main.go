package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/parleyhq/parley-backend/internal/auth"
	"github.com/parleyhq/parley-backend/internal/config"
)

func main() {
	var (
		subject = flag.String("subject", "dev@localhost", "Token subject")
		scopes  = flag.String("scopes", "*", "Comma-separated scopes")
		ttl     = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	scopeList := strings.Split(*scopes, ",")
	if err := auth.ValidateScopes(scopeList); err != nil {
		log.Fatal("Invalid scopes:", err)
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, *ttl)
	token, err := jwtService.GenerateToken(*subject, scopeList)
	if err != nil {
		log.Fatal("Failed to generate token:", err)
	}

	fmt.Printf("Access token for %s (expires in %s):\n", *subject, *ttl)
	fmt.Println(token)
	fmt.Println("\nUse it as: Authorization: Bearer <token>")
}
