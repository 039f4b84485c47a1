// Command seed creates the demo accounts and generated social activity.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"vitamora/internal/config"
	"vitamora/internal/database"
	"vitamora/internal/middleware"
	"vitamora/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	users := flag.Int("users", defaults.FillerUsers, "Number of generated users besides the demo accounts")
	posts := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Comments per post")
	likeRatio := flag.Float64("like-ratio", defaults.LikeRatio, "Share of users liking each post (0-1)")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 picks one)")
	clean := flag.Bool("clean", false, "Delete all existing social data first")
	fixturePath := flag.String("fixture", "", "YAML file replacing the embedded demo accounts")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := middleware.NewLogger(cfg.Env)

	db, err := database.Connect(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	fixture := seed.DefaultFixture()
	if *fixturePath != "" {
		raw, err := os.ReadFile(*fixturePath)
		if err != nil {
			log.Fatalf("Failed to read fixture: %v", err)
		}
		if fixture, err = seed.LoadFixture(raw); err != nil {
			log.Fatalf("Invalid fixture: %v", err)
		}
	}

	res, err := seed.NewSeeder(db, logger).Run(context.Background(), fixture, seed.Options{
		FillerUsers:     *users,
		PostsPerUser:    *posts,
		CommentsPerPost: *comments,
		LikeRatio:       *likeRatio,
		RandSeed:        *randSeed,
		Clean:           *clean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Created %d users, %d posts, %d likes, %d comments", res.Users, res.Posts, res.Likes, res.Comments)
	log.Printf("Generated users share the password %q", seed.FillerPassword)
}
