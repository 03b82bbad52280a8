package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/rijanshrestha/eventnest/internal/server"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, relying on process environment")
	}

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
