package main

import (
	"context"
	"fmt"
	"time"

	"github.com/oscelab/osce-backend/internal/config"
	"github.com/oscelab/osce-backend/internal/database"
	"github.com/oscelab/osce-backend/internal/logger"
	"github.com/oscelab/osce-backend/internal/model"
	"github.com/oscelab/osce-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentRepo := repository.NewStudentRepository(pool)

	fmt.Println("=== Seeding 50 Students ===")

	// All seeded accounts share one password: "osce-demo".
	hash, err := bcrypt.GenerateFromPassword([]byte("osce-demo"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	names := []string{
		"Emma Thompson", "Liam Chen", "Olivia Patel", "Noah Kim", "Ava Nguyen",
		"Ethan Garcia", "Sophia Ali", "Mason Okafor", "Isabella Costa", "Lucas Novak",
		"Mia Haddad", "Oliver Eriksen", "Amelia Boateng", "Elijah Fischer", "Harper Tanaka",
		"James Laurent", "Evelyn Petrov", "Benjamin Silva", "Abigail Moreau", "Henry Johansson",
		"Emily Oyelaran", "Alexander Wu", "Elizabeth Romano", "Sebastian Khan", "Sofia Lindqvist",
		"Jack Mwangi", "Avery Dubois", "Owen Castellanos", "Scarlett Ivanova", "Samuel Adeyemi",
		"Victoria Park", "Joseph Santos", "Grace Kowalski", "Daniel Aziz", "Chloe Bergman",
		"Matthew Osei", "Penelope Vargas", "David Lindgren", "Lily Farouk", "Carter Nakamura",
		"Hannah Sokolov", "Wyatt Mensah", "Zoey Delacroix", "Luke Andersen", "Stella Rahman",
		"Gabriel Moretti", "Aurora Nilsson", "Anthony Diallo", "Natalie Vasquez", "Isaac Bakker",
	}

	successCount := 0
	for i := 0; i < 50; i++ {
		student := &model.Student{
			StudentNumber: fmt.Sprintf("MED%05d", i+1),
			Name:          names[i],
			Year:          (i % 3) + 3, // Years 3-5, the clinical phase
			PasswordHash:  string(hash),
		}

		if err := studentRepo.Create(ctx, student); err != nil {
			fmt.Printf("Error creating student %s (%s): %v\n", student.Name, student.StudentNumber, err)
		} else {
			successCount++
			if (i+1)%10 == 0 {
				fmt.Printf("Created %d students...\n", i+1)
			}
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/50 students.\n", successCount)
}
