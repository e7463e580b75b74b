// Command seed loads profiles into the configured store, from a JSON file or
// from a small built-in sample set.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/skillswap/swap-app/internal/config"
	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/profile"
	"github.com/skillswap/swap-app/internal/store"
	"github.com/skillswap/swap-app/internal/store/postgres"
	"github.com/skillswap/swap-app/internal/store/redisstore"
)

func main() {
	envFile := flag.String("env", "", "path to a .env file (default ./.env if present)")
	file := flag.String("file", "", "JSON array of profiles (default: built-in samples)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	profiles := samples()
	if *file != "" {
		profiles, err = readProfiles(*file)
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	svc := profile.NewService(st)
	saved := 0
	for _, p := range profiles {
		if _, err := svc.Save(ctx, p); err != nil {
			log.Printf("[seed] skip %q: %v", p.UID, err)
			continue
		}
		saved++
	}
	log.Printf("[seed] saved %d/%d profiles to %s", saved, len(profiles), cfg.Store.Backend)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		return redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisNamespace)
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("seeding the %s backend has no effect; use redis or postgres", cfg.Backend)
}

func readProfiles(path string) ([]*models.UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var out []*models.UserProfile
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func coord(v float64) *float64 { return &v }

func samples() []*models.UserProfile {
	return []*models.UserProfile{
		{
			UID:          "demo-ana",
			Name:         "Ana",
			SkillsOffer:  []string{"Spanish", "Salsa"},
			SkillsWant:   []string{"Guitar", "Python"},
			LocationName: "Los Angeles, CA",
			Lat:          coord(34.0522),
			Lng:          coord(-118.2437),
			RadiusMiles:  30,
			Availability: models.Availability{"sat": {"10:00-12:00"}},
		},
		{
			UID:          "demo-ben",
			Name:         "Ben",
			SkillsOffer:  []string{"Guitar", "Photography"},
			SkillsWant:   []string{"Spanish"},
			LocationName: "Pasadena, CA",
			Lat:          coord(34.1478),
			Lng:          coord(-118.1445),
			RadiusMiles:  25,
		},
		{
			UID:          "demo-chen",
			Name:         "Chen",
			SkillsOffer:  []string{"Python", "Go"},
			SkillsWant:   []string{"Salsa", "Photography"},
			LocationName: "Santa Monica, CA",
			Lat:          coord(34.0195),
			Lng:          coord(-118.4912),
		},
		{
			UID:         "demo-dana",
			Name:        "Dana",
			SkillsOffer: []string{"Chess"},
			SkillsWant:  []string{"Go", "Spanish"},
		},
		{
			UID:          "demo-eli",
			Name:         "Eli",
			SkillsOffer:  []string{"Piano"},
			SkillsWant:   []string{"Chess"},
			LocationName: "Phoenix, AZ",
			Lat:          coord(33.4484),
			Lng:          coord(-112.0740),
			RadiusMiles:  10,
		},
	}
}
