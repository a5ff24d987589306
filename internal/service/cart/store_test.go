package cart

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/kvcache"
)

type reported struct {
	name  domain.EventName
	value domain.ValueData
}

type stubTracker struct {
	mu        sync.Mutex
	reports   []reported
	analytics []domain.AnalyticsEvent
}

func (s *stubTracker) Report(_ context.Context, name domain.EventName, value domain.ValueData) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, reported{name: name, value: value})
	return "evt"
}

func (s *stubTracker) Analytics(_ context.Context, ev domain.AnalyticsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analytics = append(s.analytics, ev)
}

type stubFavorites struct {
	remote  map[string][]string
	getErr  error
	putErr  error
	lastPut []string
	puts    int
}

func (s *stubFavorites) Get(_ context.Context, userID string) ([]string, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return append([]string(nil), s.remote[userID]...), nil
}

func (s *stubFavorites) Put(_ context.Context, userID string, ids []string) error {
	s.puts++
	s.lastPut = append([]string(nil), ids...)
	if s.putErr != nil {
		return s.putErr
	}
	s.remote[userID] = s.lastPut
	return nil
}

func product(id string, price int64) domain.Product {
	return domain.Product{ID: id, Title: "Bar " + id, PriceCents: price, Currency: "TRY", InStock: true, Category: "bars"}
}

func newStore(t *testing.T) (*Store, *stubTracker, *stubFavorites, kvcache.Cache) {
	t.Helper()
	cache := kvcache.NewMemory()
	tracker := &stubTracker{}
	favs := &stubFavorites{remote: map[string][]string{}}
	return Load(context.Background(), cache, favs, tracker, Options{GiftMessageMax: 20}), tracker, favs, cache
}

func TestAddItemMergesLines(t *testing.T) {
	ctx := context.Background()
	s, tracker, _, _ := newStore(t)

	s.AddItem(ctx, product("p1", 15000), 2)
	s.AddItem(ctx, product("p1", 15000), 3)

	lines := s.Lines()
	if len(lines) != 1 || lines[0].Quantity != 5 {
		t.Fatalf("expected one line with quantity 5, got %+v", lines)
	}
	if lines[0].Snapshot.Title != "Bar p1" {
		t.Fatalf("snapshot not captured: %+v", lines[0].Snapshot)
	}
	if !s.IsOpen() {
		t.Fatalf("add should open the cart")
	}
	if len(tracker.reports) != 2 {
		t.Fatalf("expected 2 AddToCart reports, got %d", len(tracker.reports))
	}
	last := tracker.reports[1]
	if last.name != domain.EventAddToCart || last.value.AmountCents != 45000 {
		t.Fatalf("unexpected report %+v", last)
	}
}

func TestAddItemNonPositiveQuantityIsNoop(t *testing.T) {
	ctx := context.Background()
	s, tracker, _, _ := newStore(t)

	s.AddItem(ctx, product("p1", 100), 0)
	s.AddItem(ctx, product("p1", 100), -2)

	if len(s.Lines()) != 0 || len(tracker.reports) != 0 || s.IsOpen() {
		t.Fatalf("non-positive add should do nothing")
	}
}

func TestUpdateQuantityBelowOneRemoves(t *testing.T) {
	ctx := context.Background()
	a, trackerA, _, _ := newStore(t)
	b, trackerB, _, _ := newStore(t)
	for _, s := range []*Store{a, b} {
		s.AddItem(ctx, product("p1", 100), 2)
		s.AddItem(ctx, product("p2", 250), 1)
	}

	a.UpdateQuantity(ctx, "p1", 0)
	b.RemoveItem(ctx, "p1")

	if !reflect.DeepEqual(a.Lines(), b.Lines()) {
		t.Fatalf("update(0) differs from remove: %+v vs %+v", a.Lines(), b.Lines())
	}
	evA := trackerA.analytics[len(trackerA.analytics)-1]
	evB := trackerB.analytics[len(trackerB.analytics)-1]
	if !reflect.DeepEqual(evA, evB) {
		t.Fatalf("event payloads differ: %+v vs %+v", evA, evB)
	}
}

func TestUpdateQuantityReplaces(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newStore(t)
	s.AddItem(ctx, product("p1", 100), 2)

	s.UpdateQuantity(ctx, "p1", 7)
	s.UpdateQuantity(ctx, "missing", 3)

	if s.Count() != 7 || s.Total() != 700 {
		t.Fatalf("count=%d total=%d", s.Count(), s.Total())
	}
}

func TestRemoveItemReportsRemovedLine(t *testing.T) {
	ctx := context.Background()
	s, tracker, _, _ := newStore(t)
	s.AddItem(ctx, product("p1", 1250), 3)

	s.RemoveItem(ctx, "p1")

	ev := tracker.analytics[len(tracker.analytics)-1]
	if ev.Name != "remove_from_cart" {
		t.Fatalf("unexpected event %s", ev.Name)
	}
	if ev.Params["value"] != 37.5 {
		t.Fatalf("event should carry removed value, got %v", ev.Params["value"])
	}
	items := ev.Params["items"].([]map[string]interface{})
	if items[0]["quantity"] != 3 {
		t.Fatalf("event should carry removed quantity, got %v", items[0]["quantity"])
	}
	if len(s.Lines()) != 0 {
		t.Fatalf("line not removed")
	}
}

func TestClearResetsGift(t *testing.T) {
	ctx := context.Background()
	s, _, _, cache := newStore(t)
	s.AddItem(ctx, product("p1", 100), 1)
	if err := s.SetGift(ctx, domain.GiftPreferences{IsGift: true, Message: "Happy birthday", HideInvoice: true}); err != nil {
		t.Fatalf("set gift: %v", err)
	}

	s.Clear(ctx)

	if len(s.Lines()) != 0 {
		t.Fatalf("lines remain")
	}
	if s.Gift() != (domain.GiftPreferences{}) {
		t.Fatalf("gift not reset: %+v", s.Gift())
	}
	if _, ok, _ := cache.Get(ctx, kvcache.KeyGiftMessage); ok {
		t.Fatalf("gift message still cached")
	}
}

func TestClearOrderedKeepsLaterAdditions(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newStore(t)
	s.AddItem(ctx, product("p1", 100), 2)
	if err := s.SetGift(ctx, domain.GiftPreferences{IsGift: true}); err != nil {
		t.Fatalf("set gift: %v", err)
	}
	ordered := s.Lines()

	s.AddItem(ctx, product("p1", 100), 1)
	s.AddItem(ctx, product("p2", 250), 1)
	s.ClearOrdered(ctx, ordered)

	lines := s.Lines()
	if len(lines) != 2 || lines[0].ProductID != "p1" || lines[0].Quantity != 1 || lines[1].ProductID != "p2" {
		t.Fatalf("unexpected remaining lines %+v", lines)
	}
	if s.Gift().IsGift {
		t.Fatalf("gift not reset")
	}

	s.ClearOrdered(ctx, s.Lines())
	if len(s.Lines()) != 0 {
		t.Fatalf("ordering every line should empty the cart")
	}
}

func TestSetGiftRejectsLongMessage(t *testing.T) {
	s, _, _, _ := newStore(t)
	err := s.SetGift(context.Background(), domain.GiftPreferences{IsGift: true, Message: strings.Repeat("ç", 21)})
	if !errors.Is(err, ErrGiftMessageTooLong) {
		t.Fatalf("expected ErrGiftMessageTooLong, got %v", err)
	}
	if s.Gift().IsGift {
		t.Fatalf("rejected gift applied")
	}
}

func TestReloadRestoresState(t *testing.T) {
	ctx := context.Background()
	s, _, favs, cache := newStore(t)
	s.AddItem(ctx, product("p1", 100), 2)
	s.ToggleFavorite(ctx, "p9")
	_ = s.SetGift(ctx, domain.GiftPreferences{IsGift: true, Message: "hi"})

	reloaded := Load(ctx, cache, favs, &stubTracker{}, Options{})

	if !reflect.DeepEqual(reloaded.Lines(), s.Lines()) {
		t.Fatalf("lines not restored")
	}
	if !reloaded.IsFavorite("p9") {
		t.Fatalf("favorite not restored")
	}
	if reloaded.Gift() != s.Gift() {
		t.Fatalf("gift not restored: %+v", reloaded.Gift())
	}
}

func TestToggleFavoriteTwiceIsIdentity(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newStore(t)
	s.ToggleFavorite(ctx, "a")
	before := s.Favorites()

	if !s.ToggleFavorite(ctx, "b") {
		t.Fatalf("first toggle should add")
	}
	if s.ToggleFavorite(ctx, "b") {
		t.Fatalf("second toggle should remove")
	}
	if !reflect.DeepEqual(before, s.Favorites()) {
		t.Fatalf("expected %v, got %v", before, s.Favorites())
	}
}

func TestSignInUnionsRemoteFavorites(t *testing.T) {
	ctx := context.Background()
	s, _, favs, _ := newStore(t)
	s.ToggleFavorite(ctx, "A")
	s.ToggleFavorite(ctx, "B")
	favs.remote["u1"] = []string{"B", "C"}

	s.SignIn(ctx, "u1")

	if got := s.Favorites(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("expected {A,B,C}, got %v", got)
	}
}

func TestToggleWritesUnionToRemote(t *testing.T) {
	ctx := context.Background()
	s, _, favs, _ := newStore(t)
	s.SignIn(ctx, "u1")
	favs.remote["u1"] = []string{"X"}

	s.ToggleFavorite(ctx, "A")
	if !reflect.DeepEqual(favs.lastPut, []string{"A", "X"}) {
		t.Fatalf("remote should keep other device's favorites, got %v", favs.lastPut)
	}

	s.ToggleFavorite(ctx, "A")
	if !reflect.DeepEqual(favs.lastPut, []string{"X"}) {
		t.Fatalf("removal should drop only the toggled id, got %v", favs.lastPut)
	}
}

func TestRemoteFavoriteFailureIsSilent(t *testing.T) {
	ctx := context.Background()
	s, _, favs, cache := newStore(t)
	s.SignIn(ctx, "u1")
	favs.putErr = errors.New("offline")

	if !s.ToggleFavorite(ctx, "A") {
		t.Fatalf("local toggle should succeed")
	}
	var cached []string
	if _, err := kvcache.GetJSON(ctx, cache, kvcache.KeyFavorites, &cached); err != nil || !reflect.DeepEqual(cached, []string{"A"}) {
		t.Fatalf("cache should mirror memory, got %v err=%v", cached, err)
	}
}

func TestAnonymousToggleSkipsRemote(t *testing.T) {
	s, _, favs, _ := newStore(t)
	s.ToggleFavorite(context.Background(), "A")
	if favs.puts != 0 {
		t.Fatalf("anonymous toggle wrote remote")
	}
}
