// Command main fills the forum database with demo data.
package main

import (
	"flag"
	"log"
	"os"

	"forum/internal/config"
	"forum/internal/database"
	"forum/internal/middleware"
	"forum/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of generated users")
	numDiscussions := flag.Int("discussions", 60, "Number of generated discussions")
	maxComments := flag.Int("max-comments", 5, "Maximum comments per discussion")
	likeRatio := flag.Float64("like-ratio", 0.3, "Chance that a user likes a discussion")
	shouldClean := flag.Bool("clean", false, "Remove all forum data before seeding")
	fixtures := flag.String("fixtures", "", "YAML fixture file to load instead of the bundled one")
	skipFixtures := flag.Bool("no-fixtures", false, "Skip fixture loading")
	randSeed := flag.Int64("seed", 0, "Random seed; 0 picks one")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if *shouldClean {
		if err := seed.Clean(db); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	if !*skipFixtures {
		fx := seed.DefaultFixtures()
		if *fixtures != "" {
			raw, err := os.ReadFile(*fixtures)
			if err != nil {
				log.Fatalf("Failed to read fixtures: %v", err)
			}
			if fx, err = seed.ParseFixtures(raw); err != nil {
				log.Fatalf("Invalid fixtures: %v", err)
			}
		}
		res, err := seed.LoadFixtures(db, fx)
		if err != nil {
			log.Fatalf("Fixture loading failed: %v", err)
		}
		log.Printf("Fixtures: %d users, %d discussions, %d comments, %d likes", res.Users, res.Discussions, res.Comments, res.Likes)
	}

	if _, err := seed.Run(db, seed.Options{
		NumUsers:       *numUsers,
		NumDiscussions: *numDiscussions,
		MaxComments:    *maxComments,
		LikeRatio:      *likeRatio,
		Seed:           *randSeed,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done. Generated users share the password %q", seed.DefaultPassword)
}
