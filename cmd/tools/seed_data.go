package main

import (
	"context"
	"fmt"
	"log"
	"match-chat/auth"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/repositories"
	"match-chat/services"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	JWTSecret      string `env:"JWT_SECRET,required=true"`
	JWTIssuer      string `env:"JWT_ISSUER,default=match-chat"`
	SeedUsers      int    `env:"SEED_USERS,default=5"`
	LogLevel       string `env:"LOG_LEVEL,default=WARN"`
}

// Seeds a local store with users, mutual matches and their chats, then prints
// a token per user so that the viewer can connect right away.
func main() {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	users := repositories.NewUserRepository(db, logger)
	matchRepo := repositories.NewMatchRepository(db, logger)
	chatRepo := repositories.NewChatRepository(db, logger)
	chats := services.NewChatService(chatRepo, matchRepo, services.UTCClock, logger)
	matches := services.NewMatchService(matchRepo, chatRepo, nil, noopPublisher{}, services.NewIDs(), services.UTCClock, logger)
	tokens := auth.NewTokenService(config.JWTSecret, config.JWTIssuer)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "Chat with seed-1", "Token"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	now := time.Now().UTC()
	for i := 1; i <= config.SeedUsers; i++ {
		userID := fmt.Sprintf("seed-%d", i)
		if err := users.Touch(ctx, userID, now.Add(-time.Duration(i)*time.Minute)); err != nil {
			log.Fatalf("Seed user %s: %v", userID, err)
		}
		chatID := "-"
		if i > 1 {
			chatID = mutualChat(ctx, matches, chats, "seed-1", userID)
		}
		token, err := tokens.Generate(userID, 24*time.Hour)
		if err != nil {
			log.Fatalf("Token for %s: %v", userID, err)
		}
		table.Append([]string{userID, chatID, token})
	}
	table.Render()
}

func mutualChat(ctx context.Context, matches *services.MatchService, chats *services.ChatService, a, b string) string {
	if _, err := matches.RecordSwipe(ctx, domain.Swipe{Actor: a, Target: b, Action: domain.Like}); err != nil {
		log.Printf("Swipe %s -> %s skipped: %v", a, b, err)
		return "-"
	}
	outcome, err := matches.RecordSwipe(ctx, domain.Swipe{Actor: b, Target: a, Action: domain.Like})
	if err != nil || outcome.Match == nil {
		log.Printf("Swipe %s -> %s skipped: %v", b, a, err)
		return "-"
	}
	chat, err := chats.GetOrCreateChat(ctx, outcome.Match.ID, a)
	if err != nil {
		log.Fatalf("Open chat %s: %v", outcome.Match.ID, err)
	}
	return chat.ID
}

// noopPublisher drops events, nobody is connected while seeding.
type noopPublisher struct{}

func (noopPublisher) Publish(event.DomainEvent) {}
