// mint-token prints a signed student JWT for local development and testing.
// Production tokens come from the identity service, which shares JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/quizforge/attemptd/internal/auth"
	"github.com/quizforge/attemptd/internal/config"
)

func main() {
	var studentID int
	flag.IntVar(&studentID, "student", 1, "Student ID to embed in the token")
	flag.Parse()

	cfg := config.Load()
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiry)

	token, err := tokens.GenerateStudentToken(studentID)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}
	fmt.Println(token)
}
