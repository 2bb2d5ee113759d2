package store

import (
	"path/filepath"
	"sync/atomic"

	"github.com/tokenpulse/tokenpulse/internal/model"
)

// Stores bundles the three pipeline documents and the process-wide Post ID
// counter and SeenSet, all scoped to one data directory.
type Stores struct {
	Scrape    *Document[model.Post]
	Sentiment *Document[model.TokenRecord]
	Coin      *Document[model.CoinEntry]
	Seen      *SeenSet

	nextID atomic.Int64
}

// New builds a Stores rooted at dataDir, seeding the SeenSet and Post ID
// counter from whatever is already on disk in the ScrapeStore.
func New(dataDir string) (*Stores, error) {
	s := &Stores{
		Scrape:    NewDocument[model.Post](filepath.Join(dataDir, "scraped_posts.json")),
		Sentiment: NewDocument[model.TokenRecord](filepath.Join(dataDir, "sentiment.json")),
		Coin:      NewDocument[model.CoinEntry](filepath.Join(dataDir, "coin-data.json")),
		Seen:      NewSeenSet(),
	}

	existing, err := s.Scrape.Read()
	if err != nil {
		return nil, err
	}
	var maxID int64
	for _, p := range existing {
		s.Seen.CheckAndAdd(p.Key())
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	s.nextID.Store(maxID)
	return s, nil
}

// NextPostID hands out the next monotonically increasing Post ID.
func (s *Stores) NextPostID() int64 {
	return s.nextID.Add(1)
}

// AppendPost inserts or merges a Post into the ScrapeStore using the
// dedup-preferring-non-empty-fields merge rule from spec.md §4.7/§9:
// "keep existing, upgrade empty fields". ID assignment happens inside the
// same Document.Update lock as the append itself, so concurrent sources
// can never have their IDs and their append order come out inverted.
func (s *Stores) AppendPost(p model.Post) (int64, error) {
	var id int64
	err := s.Scrape.Update(func(current []model.Post) ([]model.Post, error) {
		for i := range current {
			if current[i].Key() == p.Key() {
				id = current[i].ID
				return mergeScrapePost(current, i, p), nil
			}
		}
		id = s.nextID.Add(1)
		p.ID = id
		return append(current, p), nil
	})
	return id, err
}

func mergeScrapePost(current []model.Post, idx int, incoming model.Post) []model.Post {
	existing := current[idx]
	if existing.TokenSymbol == nil && incoming.TokenSymbol != nil {
		existing.TokenSymbol = incoming.TokenSymbol
	}
	if len(existing.Comments) == 0 && len(incoming.Comments) > 0 {
		existing.Comments = incoming.Comments
	}
	current[idx] = existing
	return current
}

// UpdatePostSymbol performs the read-modify-write that attaches a resolved
// token symbol to an already-stored Post, keyed by Post ID.
func (s *Stores) UpdatePostSymbol(postID int64, symbol string) error {
	return s.Scrape.Update(func(current []model.Post) ([]model.Post, error) {
		for i := range current {
			if current[i].ID == postID {
				current[i].TokenSymbol = &symbol
			}
		}
		return current, nil
	})
}
