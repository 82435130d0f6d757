// Package main provides account administration utilities for the forum.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"forum/internal/config"
	"forum/internal/database"
	"forum/internal/models"
	"forum/internal/repository"
	"forum/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin create-superuser <email> <password>  - Create a superuser account")
	fmt.Println("  go run ./cmd/admin promote <user_id>                     - Grant staff and superuser")
	fmt.Println("  go run ./cmd/admin demote <user_id>                      - Revoke staff and superuser")
	fmt.Println("  go run ./cmd/admin list-superusers                       - List all superusers")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	switch os.Args[1] {
	case "create-superuser":
		if len(os.Args) < 4 {
			usage()
		}
		createSuperuser(db, os.Args[2], os.Args[3])
	case "promote":
		if len(os.Args) < 3 {
			usage()
		}
		setSuperuser(db, os.Args[2], true)
	case "demote":
		if len(os.Args) < 3 {
			usage()
		}
		setSuperuser(db, os.Args[2], false)
	case "list-superusers":
		listSuperusers(db)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
	}
}

func createSuperuser(db *gorm.DB, email, password string) {
	ctx := context.Background()
	users := repository.NewUserRepository(db)

	exists, err := users.EmailExists(ctx, models.NormalizeEmail(email))
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if exists {
		log.Fatalf("An account with email %s already exists", email)
	}

	user, err := service.NewUserFactory().NewSuperuser(service.NewUserInput{Email: email, Password: password})
	if err != nil {
		log.Fatalf("Invalid superuser: %v", err)
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("Failed to create superuser: %v", err)
	}
	fmt.Printf("Created superuser %s (ID: %d)\n", user.Email, user.ID)
}

func setSuperuser(db *gorm.DB, userID string, on bool) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if user.IsSuperuser == on {
		fmt.Printf("User %s (ID: %d) already has is_superuser=%t\n", user.Email, user.ID, on)
		return
	}

	// Updates with a map so false is written too.
	if err := db.Model(&user).Updates(map[string]interface{}{"is_superuser": on, "is_staff": on}).Error; err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}
	fmt.Printf("Set is_superuser=%t for %s (ID: %d)\n", on, user.Email, user.ID)
}

func listSuperusers(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_superuser = ?", true).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch superusers: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No superusers found")
		return
	}
	for _, admin := range admins {
		fmt.Printf("ID: %d | Email: %s | Active: %t\n", admin.ID, admin.Email, admin.IsActive)
	}
}
