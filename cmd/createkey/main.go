package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/auth"
	"github.com/parleyhq/parley-backend/internal/config"
	"github.com/parleyhq/parley-backend/internal/database"
	"github.com/parleyhq/parley-backend/internal/repository/postgres"
)

func main() {
	var (
		name   = flag.String("name", "", "Key name (required unless -list or -revoke)")
		scopes = flag.String("scopes", "sessions:*,chat:write", "Comma-separated scopes")
		list   = flag.Bool("list", false, "List existing keys")
		revoke = flag.String("revoke", "", "Revoke the key with this id")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	svc := auth.NewService(postgres.NewAPIKeyRepository(db.DB), cfg.Auth, logger)
	ctx := context.Background()

	switch {
	case *list:
		keys, err := svc.ListKeys(ctx)
		if err != nil {
			log.Fatal("Failed to list keys:", err)
		}
		if len(keys) == 0 {
			fmt.Println("No API keys stored")
			return
		}
		for _, key := range keys {
			status := "active"
			if key.Revoked {
				status = "revoked"
			}
			fmt.Printf("%s  %-8s  %-24s  %s\n", key.ID, status, key.Name, strings.Join(key.Scopes, ","))
		}

	case *revoke != "":
		if err := svc.RevokeKey(ctx, *revoke); err != nil {
			log.Fatal("Failed to revoke key:", err)
		}
		fmt.Println("Key revoked:", *revoke)

	default:
		if *name == "" {
			log.Fatal("-name is required")
		}
		plaintext, key, err := svc.CreateKey(ctx, *name, strings.Split(*scopes, ","))
		if err != nil {
			log.Fatal("Failed to create key:", err)
		}

		fmt.Println("=== API Key Created ===")
		fmt.Printf("ID:     %s\n", key.ID)
		fmt.Printf("Name:   %s\n", key.Name)
		fmt.Printf("Scopes: %s\n", strings.Join(key.Scopes, ","))
		fmt.Println("\nKey (shown once, store it now):")
		fmt.Println(plaintext)
	}
}
