// Command seed creates or updates a user account and credits it with points.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/passage-quiz/backend/internal/config"
	"github.com/passage-quiz/backend/internal/database"
	"github.com/passage-quiz/backend/internal/logger"
	"github.com/passage-quiz/backend/internal/points"
)

func main() {
	email := flag.String("email", "demo@example.com", "account email")
	name := flag.String("name", "Demo User", "display name")
	password := flag.String("password", "demo-password", "account password (min 8 characters)")
	grant := flag.Int("points", 100, "points to credit; 0 skips the grant")
	flag.Parse()

	cfg := config.Load()
	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLog.Sync()

	*email = strings.TrimSpace(strings.ToLower(*email))
	if *email == "" || strings.TrimSpace(*name) == "" || len(*password) < 8 {
		appLog.Fatal("email and name are required and password must be at least 8 characters")
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		appLog.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		appLog.Fatal("Failed to run migrations", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		appLog.Fatal("Failed to hash password", "error", err)
	}

	var userID int64
	err = db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, username, password)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE SET
		    name = EXCLUDED.name,
		    password = EXCLUDED.password,
		    updated_at = NOW()
		 RETURNING id`,
		*email, *name, database.GenerateUsername(*name), string(hashed),
	).Scan(&userID)
	if err != nil {
		appLog.Fatal("Failed to upsert user", "email", *email, "error", err)
	}

	balance := 0
	if *grant > 0 {
		pointsService := points.NewService(points.NewStore(db), points.NewCosts(cfg.Costs), appLog)
		balance, err = pointsService.Grant(ctx, userID, *grant, "seed")
		if err != nil {
			appLog.Fatal("Failed to grant points", "user_id", userID, "error", err)
		}
	}

	appLog.Info("Seeded user", "user_id", userID, "email", *email, "granted", *grant, "balance", balance)
}
