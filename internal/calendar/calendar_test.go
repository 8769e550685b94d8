package calendar

import "testing"

func TestIsOpen_UnknownMarketIsClosed(t *testing.T) {
	c := New()
	if c.IsOpen("tokyo-equity") {
		t.Fatal("expected unknown market to report closed")
	}
}

func TestMarkets_ListsConfiguredThree(t *testing.T) {
	c := New()
	markets := c.Markets()
	if len(markets) != 3 {
		t.Fatalf("expected 3 markets, got %d", len(markets))
	}
}
