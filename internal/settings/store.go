// Package settings owns the process-wide configuration document: feature
// toggles, the store catalog, broadcast text and posted content. The document
// is loaded once at startup, read through copies, and every admin write
// replaces the whole persisted row so readers never observe a torn update.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"predictpro/internal/domain"
)

// PremiumProductID is the catalog item whose purchase flips IsPremium.
const PremiumProductID = "premium_plan"

// Product is one admin-managed catalog item.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"` // Always positive
	Description string `json:"description"`
}

// Broadcast is the site-wide message shown to users.
type Broadcast struct {
	Message     string `json:"message"`
	PremiumOnly bool   `json:"premiumOnly"`
}

// GameOfDay is the admin-posted daily feature content.
type GameOfDay struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Settings is the whole configuration document.
type Settings struct {
	CrashEnabled             bool      `json:"crashEnabled"`
	MinesEnabled             bool      `json:"minesEnabled"`
	AssistantResetEnabled    bool      `json:"assistantResetEnabled"`
	PasswordlessLoginEnabled bool      `json:"passwordlessLoginEnabled"`
	DailyOddsContent         string    `json:"dailyOddsContent"`
	GameOfDay                GameOfDay `json:"gameOfDay"`
	Broadcast                Broadcast `json:"broadcast"`
	StoreProducts            []Product `json:"storeProducts"`
}

// Defaults returns the seed document used when no settings row exists yet.
func Defaults() Settings {
	return Settings{
		CrashEnabled:             true,
		MinesEnabled:             true,
		AssistantResetEnabled:    true,
		PasswordlessLoginEnabled: true,
		DailyOddsContent:         "<p>Odds have not been posted for today.</p>",
		GameOfDay:                GameOfDay{Title: "No Game Posted", Content: "<p>Check back later!</p>"},
		Broadcast:                Broadcast{Message: "Welcome to PredictPro! Add funds to your wallet.", PremiumOnly: false},
		StoreProducts: []Product{
			{ID: PremiumProductID, Name: "Premium Plan (Lifetime)", Price: 800, Description: "Unlocks Daily Rewards, Game of the Day, and the Premium UI."},
			{ID: "crash_license", Name: "Crash Predictor (10 Uses)", Price: 400, Description: "Get 10 uses of the Crash prediction tool."},
			{ID: "mines_license", Name: "Mines Predictor (10 Uses)", Price: 500, Description: "Get 10 uses of the Mines prediction tool."},
		},
	}
}

// Document is the single persisted settings row.
type Document struct {
	ID        uint      `gorm:"primaryKey"`
	Data      []byte    `gorm:"type:json;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Document) TableName() string { return "settings_documents" }

// Store serves read-mostly snapshots of the settings document and persists
// admin writes as a single row replacement.
type Store struct {
	db *gorm.DB

	mu      sync.RWMutex
	current Settings
}

// Load reads the settings row, seeding it with defaults when absent.
func Load(db *gorm.DB) (*Store, error) {
	s := &Store{db: db}
	var doc Document
	err := db.First(&doc, 1).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.current = Defaults()
		if err := s.persist(s.current); err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
		logrus.Info("Settings seeded with defaults")
	case err != nil:
		return nil, fmt.Errorf("load settings: %w", err)
	default:
		if err := json.Unmarshal(doc.Data, &s.current); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	return s, nil
}

// Snapshot returns a copy of the current document, valid until the next write.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.current
	snap.StoreProducts = append([]Product(nil), s.current.StoreProducts...)
	return snap
}

// Product looks up one catalog item in the current snapshot.
func (s *Store) Product(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.current.StoreProducts {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Update applies mutate to a copy of the document, persists the result, and
// only then publishes it. A failed save leaves the in-memory copy untouched.
func (s *Store) Update(mutate func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	next.StoreProducts = append([]Product(nil), s.current.StoreProducts...)
	if err := mutate(&next); err != nil {
		return err
	}
	if err := s.persist(next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.current = next
	return nil
}

// UpsertProduct creates or replaces a catalog item.
func (s *Store) UpsertProduct(p Product) error {
	if p.ID == "" || p.Name == "" || p.Price <= 0 {
		return fmt.Errorf("%w: product needs id, name and a positive price", domain.ErrValidation)
	}
	return s.Update(func(cur *Settings) error {
		for i := range cur.StoreProducts {
			if cur.StoreProducts[i].ID == p.ID {
				cur.StoreProducts[i] = p
				return nil
			}
		}
		cur.StoreProducts = append(cur.StoreProducts, p)
		return nil
	})
}

// DeleteProduct removes a catalog item by id.
func (s *Store) DeleteProduct(id string) error {
	return s.Update(func(cur *Settings) error {
		kept := cur.StoreProducts[:0]
		found := false
		for _, p := range cur.StoreProducts {
			if p.ID == id {
				found = true
				continue
			}
			kept = append(kept, p)
		}
		if !found {
			return fmt.Errorf("%w: product %q", domain.ErrNotFound, id)
		}
		cur.StoreProducts = kept
		return nil
	})
}

func (s *Store) persist(next Settings) error {
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	doc := Document{ID: 1, Data: data}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&doc).Error
}
