package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Moscow city center; demo users are scattered around it.
const (
	seedCenterLat = 55.7558
	seedCenterLng = 37.6176
)

// SeedTestData resets the database and populates it with demo users and swipes.
//
// Behavior:
//  1. Clears existing data in `users`, `swipes` and `matches` tables.
//  2. Creates 20 users (10 male, 10 female) with hashed passwords, ages and
//     coordinates around Moscow; a couple of named profiles (anna, alex,
//     dmitry) for manual poking.
//  3. Generates swipes with ~70% likes; roughly every third like gets a
//     reciprocal like, which the detector will turn into matches at runtime.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"matches", "swipes", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences
	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE matches AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'matches'")
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'users'")
	}

	log.Println("Cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	names := map[int]string{1: "anna", 2: "alex", 3: "dmitry"}
	coords := map[int][2]float64{
		1: {55.7558, 37.6176}, // anna, Red Square area
		2: {55.7522, 37.5936}, // alex, ~1.9km away
		3: {55.7887, 37.6693}, // dmitry, Sokolniki
	}

	// --- Seed Users (10 female, 10 male) ---
	for i := 1; i <= 20; i++ {
		username := names[i]
		if username == "" {
			username = fmt.Sprintf("user%d", i)
		}

		gender := GenderFemale
		interest := GenderMale
		if i%2 == 0 {
			gender = GenderMale
			interest = GenderFemale
		}

		lat := seedCenterLat + (r.Float64()-0.5)*0.3
		lng := seedCenterLng + (r.Float64()-0.5)*0.5
		if c, ok := coords[i]; ok {
			lat, lng = c[0], c[1]
		}

		user := User{
			Username:      username,
			Email:         fmt.Sprintf("%s@example.com", username),
			PasswordHash:  string(hash),
			Active:        true,
			Age:           21 + r.Intn(20),
			Gender:        gender,
			InterestedIn:  interest,
			MaxDistanceKm: 25 + float64(r.Intn(50)),
			Latitude:      &lat,
			Longitude:     &lng,
			LastActiveAt:  time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		}

		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}
	log.Println("Seeded 20 users.")

	// --- Seed Swipes ---
	var users []User
	if err := db.Find(&users).Error; err != nil {
		return fmt.Errorf("failed to load seeded users: %w", err)
	}
	byID := make(map[uint64]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	counter := 0
	for _, judge := range users {
		for j := 0; j < 8; j++ {
			subject, ok := byID[users[r.Intn(len(users))].ID]
			if !ok || subject.ID == judge.ID || subject.Gender == judge.Gender {
				continue
			}

			decision := DecisionDislike
			if r.Intn(100) < 70 {
				decision = DecisionLike
			}

			// a reciprocal like roughly every third pair
			if counter%3 == 0 {
				decision = DecisionLike
				recip := Swipe{JudgeID: subject.ID, SubjectID: judge.ID, Decision: DecisionLike}
				db.Create(&recip) // duplicate pairs just fail, fine for seed data
			}

			swipe := Swipe{JudgeID: judge.ID, SubjectID: subject.ID, Decision: decision}
			db.Create(&swipe)

			counter++
		}
	}
	log.Printf("Seeded swipes for %d users.", len(users))

	return nil
}
