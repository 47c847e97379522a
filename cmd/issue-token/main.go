// Command issue-token prints a signed access token for local development.
// Production tokens come from the auth service.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jordanlanch/leadcrm/config"
	"github.com/jordanlanch/leadcrm/pkg/auth"
	"github.com/jordanlanch/leadcrm/pkg/models"
)

func main() {
	user := flag.String("user", "admin-1", "user id carried in the token")
	role := flag.String("role", models.RoleAdmin, "admin or agent")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *role != models.RoleAdmin && *role != models.RoleAgent {
		log.Fatalf("❌ role must be %q or %q", models.RoleAdmin, models.RoleAgent)
	}

	cfg := config.Load()
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to issue tokens with the production secret")
	}

	token, err := auth.GenerateJWT(*user, *role, *email, cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("❌ Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
