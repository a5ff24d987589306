package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"unicode/utf8"

	"chocolate-storefront/internal/conversion"
	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/kvcache"
)

const DefaultGiftMessageMax = 200

var ErrGiftMessageTooLong = errors.New("gift message too long")

// Tracker reports cart actions to the conversion pipeline.
type Tracker interface {
	Report(ctx context.Context, name domain.EventName, value domain.ValueData) string
	Analytics(ctx context.Context, ev domain.AnalyticsEvent)
}

type favoriteRepo interface {
	Get(ctx context.Context, userID string) ([]string, error)
	Put(ctx context.Context, userID string, productIDs []string) error
}

// Store owns one session's cart lines, favorites and gift preferences. The
// cache mirrors every mutation; the remote favorites list is best-effort.
type Store struct {
	cache     kvcache.Cache
	favorites favoriteRepo
	tracker   Tracker
	giftMax   int
	logger    *log.Logger

	mu     sync.Mutex
	lines  []domain.CartLine
	favs   map[string]struct{}
	gift   domain.GiftPreferences
	open   bool
	userID string
}

type Options struct {
	GiftMessageMax int
	Logger         *log.Logger
}

// Load rebuilds a store from the cache. Unreadable keys fall back to empty state.
func Load(ctx context.Context, cache kvcache.Cache, favorites favoriteRepo, tracker Tracker, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	giftMax := opts.GiftMessageMax
	if giftMax <= 0 {
		giftMax = DefaultGiftMessageMax
	}
	s := &Store{
		cache:     cache,
		favorites: favorites,
		tracker:   tracker,
		giftMax:   giftMax,
		logger:    logger,
		favs:      make(map[string]struct{}),
	}

	var lines []domain.CartLine
	if _, err := kvcache.GetJSON(ctx, cache, kvcache.KeyCart, &lines); err != nil {
		logger.Printf("cart: load lines error=%v", err)
	}
	for _, l := range lines {
		if l.ProductID != "" && l.Quantity >= 1 {
			s.lines = append(s.lines, l)
		}
	}
	var favs []string
	if _, err := kvcache.GetJSON(ctx, cache, kvcache.KeyFavorites, &favs); err != nil {
		logger.Printf("cart: load favorites error=%v", err)
	}
	for _, id := range favs {
		s.favs[id] = struct{}{}
	}
	if _, err := kvcache.GetJSON(ctx, cache, kvcache.KeyGiftEnabled, &s.gift.IsGift); err != nil {
		logger.Printf("cart: load gift flag error=%v", err)
	}
	if _, err := kvcache.GetJSON(ctx, cache, kvcache.KeyGiftMessage, &s.gift.Message); err != nil {
		logger.Printf("cart: load gift message error=%v", err)
	}
	if _, err := kvcache.GetJSON(ctx, cache, kvcache.KeyGiftHideInvoice, &s.gift.HideInvoice); err != nil {
		logger.Printf("cart: load gift invoice flag error=%v", err)
	}
	return s
}

// AddItem merges quantity into the product's line or inserts a new one, opens
// the cart and reports AddToCart. A quantity below 1 does nothing.
func (s *Store) AddItem(ctx context.Context, p domain.Product, quantity int) {
	if quantity <= 0 || p.ID == "" {
		return
	}
	s.mu.Lock()
	merged := false
	for i := range s.lines {
		if s.lines[i].ProductID == p.ID {
			s.lines[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		s.lines = append(s.lines, domain.CartLine{
			ProductID:      p.ID,
			UnitPriceCents: p.PriceCents,
			Currency:       p.Currency,
			Quantity:       quantity,
			Snapshot: domain.ProductSnapshot{
				Title:    p.Title,
				ImageURL: p.ImageURL,
				Category: p.Category,
			},
		})
	}
	s.open = true
	s.persistLinesLocked(ctx)
	s.mu.Unlock()

	item := domain.ConversionItem{ProductID: p.ID, Quantity: quantity, PriceCents: p.PriceCents}
	value := p.PriceCents * int64(quantity)
	s.tracker.Report(ctx, domain.EventAddToCart, domain.ValueData{
		Currency:    p.Currency,
		AmountCents: value,
		Items:       []domain.ConversionItem{item},
	})
	s.tracker.Analytics(ctx, domain.AnalyticsEvent{
		Name:   "add_to_cart",
		Params: conversion.ItemParams(p.Currency, value, []domain.ConversionItem{item}),
	})
}

// UpdateQuantity sets the line quantity; a quantity below 1 removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	if quantity < 1 {
		s.RemoveItem(ctx, productID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity = quantity
			s.persistLinesLocked(ctx)
			return
		}
	}
}

// RemoveItem deletes the line and reports what was removed.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mu.Lock()
	idx := -1
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	removed := s.lines[idx]
	s.lines = append(s.lines[:idx:idx], s.lines[idx+1:]...)
	s.persistLinesLocked(ctx)
	s.mu.Unlock()

	s.tracker.Analytics(ctx, domain.AnalyticsEvent{
		Name:   "remove_from_cart",
		Params: removedParams(removed),
	})
}

func removedParams(l domain.CartLine) map[string]interface{} {
	return conversion.ItemParams(l.Currency, l.TotalCents(), []domain.ConversionItem{{
		ProductID:  l.ProductID,
		Quantity:   l.Quantity,
		PriceCents: l.UnitPriceCents,
	}})
}

// Clear empties the cart and resets gift preferences.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.persistLinesLocked(ctx)
	s.resetGiftLocked(ctx)
}

// ClearOrdered removes the ordered quantities and resets gift preferences.
// Anything added after the order was snapshotted stays in the cart; when
// nothing was, this is Clear.
func (s *Store) ClearOrdered(ctx context.Context, ordered []domain.CartLine) {
	take := make(map[string]int, len(ordered))
	for _, l := range ordered {
		take[l.ProductID] += l.Quantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.CartLine
	for _, l := range s.lines {
		l.Quantity -= take[l.ProductID]
		if l.Quantity >= 1 {
			kept = append(kept, l)
		}
	}
	s.lines = kept
	s.persistLinesLocked(ctx)
	s.resetGiftLocked(ctx)
}

func (s *Store) resetGiftLocked(ctx context.Context) {
	s.gift = domain.GiftPreferences{}
	for _, key := range []string{kvcache.KeyGiftEnabled, kvcache.KeyGiftMessage, kvcache.KeyGiftHideInvoice} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Printf("cart: reset %s error=%v", key, err)
		}
	}
}

func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartLine(nil), s.lines...)
}

// Count is the sum of line quantities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CartCount(s.lines)
}

// Total is the sum of price times quantity, in minor units.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CartTotal(s.lines)
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
}

func (s *Store) Gift() domain.GiftPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gift
}

func (s *Store) SetGift(ctx context.Context, prefs domain.GiftPreferences) error {
	if utf8.RuneCountInString(prefs.Message) > s.giftMax {
		return fmt.Errorf("%w: max %d characters", ErrGiftMessageTooLong, s.giftMax)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gift = prefs
	s.setLocked(ctx, kvcache.KeyGiftEnabled, prefs.IsGift)
	s.setLocked(ctx, kvcache.KeyGiftMessage, prefs.Message)
	s.setLocked(ctx, kvcache.KeyGiftHideInvoice, prefs.HideInvoice)
	return nil
}

func (s *Store) IsFavorite(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.favs[productID]
	return ok
}

// Favorites returns the favorite ids in sorted order.
func (s *Store) Favorites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.favs)
}

// ToggleFavorite flips the product locally and reports whether it is now a
// favorite. For a signed-in user the remote list is overwritten with the union
// of remote and local as read now, minus the product on removal.
func (s *Store) ToggleFavorite(ctx context.Context, productID string) bool {
	s.mu.Lock()
	_, was := s.favs[productID]
	if was {
		delete(s.favs, productID)
	} else {
		s.favs[productID] = struct{}{}
	}
	local := sortedKeys(s.favs)
	s.setLocked(ctx, kvcache.KeyFavorites, local)
	userID := s.userID
	s.mu.Unlock()

	if userID != "" && s.favorites != nil {
		s.syncRemote(ctx, userID, local, productID, was)
	}
	return !was
}

func (s *Store) syncRemote(ctx context.Context, userID string, local []string, productID string, removed bool) {
	remote, err := s.favorites.Get(ctx, userID)
	if err != nil {
		s.logger.Printf("cart: favorites fetch user=%s error=%v", userID, err)
		return
	}
	merged := make(map[string]struct{}, len(remote)+len(local))
	for _, id := range remote {
		merged[id] = struct{}{}
	}
	for _, id := range local {
		merged[id] = struct{}{}
	}
	if removed {
		delete(merged, productID)
	}
	if err := s.favorites.Put(ctx, userID, sortedKeys(merged)); err != nil {
		s.logger.Printf("cart: favorites write user=%s error=%v", userID, err)
	}
}

// SignIn attaches the user and expands local favorites with the remote list
// fetched now. The local set never shrinks.
func (s *Store) SignIn(ctx context.Context, userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
	if userID == "" || s.favorites == nil {
		return
	}

	remote, err := s.favorites.Get(ctx, userID)
	if err != nil {
		s.logger.Printf("cart: favorites pull user=%s error=%v", userID, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range remote {
		s.favs[id] = struct{}{}
	}
	s.setLocked(ctx, kvcache.KeyFavorites, sortedKeys(s.favs))
}

func (s *Store) SignOut() {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()
}

func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Store) persistLinesLocked(ctx context.Context) {
	lines := s.lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	s.setLocked(ctx, kvcache.KeyCart, lines)
}

func (s *Store) setLocked(ctx context.Context, key string, v interface{}) {
	if err := kvcache.SetJSON(ctx, s.cache, key, v); err != nil {
		s.logger.Printf("cart: persist %s error=%v", key, err)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
