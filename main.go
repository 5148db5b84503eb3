package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	session, err := NewDiscordSession(cfg.DiscordBotToken)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}

	router := NewRouter(session, NewRoutingPolicy(cfg.Routes))
	bot := NewBot(cfg, db, NewClassifier(cfg), router)

	session.AddHandler(bot.OnReady)
	session.AddHandler(bot.OnMessageCreate)
	session.AddHandler(bot.OnInteractionCreate)

	if err := session.Open(); err != nil {
		log.Fatalf("Failed to connect to Discord: %v", err)
	}
	defer session.Close()

	bot.RegisterCommands(session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := NewMonitor(db, cfg.PollInterval(), router.RouteExternal)
	go monitor.Run(ctx)

	StartDigestScheduler(cfg, db, router)

	log.Println("Feedwatch bot is live and listening for messages...")

	// Block until a termination signal: stop intake, release handles, exit.
	// In-flight classify-and-route work is not cancelled.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down gracefully...")
}
