// Command stafftoken mints a staff JWT for local testing of the staff
// endpoints.  It reads JWT_SECRET from the environment or a .env file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/table-settlement/internal/utils"
)

func main() {
	staffID := flag.String("staff", "staff-1", "staff member ID (token subject)")
	role := flag.String("role", "STAFF", "STAFF or OWNER")
	venue := flag.String("venue", "", "venue the token is scoped to; empty for all venues")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing required env var: JWT_SECRET")
	}
	tok, err := utils.NewStaffToken(secret, *staffID, *role, *venue, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
