package order

import (
	"testing"
	"time"
)

func TestBookSetGetList(t *testing.T) {
	b := NewBook()
	now := time.Now()
	b.Set(Order{ID: "2", Symbol: "SOLUSDT", Status: StatusAck, CreatedAt: now.Add(time.Second)})
	b.Set(Order{ID: "1", Symbol: "SOLUSDT", Status: StatusNew, CreatedAt: now})
	got, ok := b.Get("1")
	if !ok || got.Symbol != "SOLUSDT" {
		t.Fatalf("get failed: %+v %v", got, ok)
	}
	list := b.List()
	if len(list) != 2 || list[0].ID != "1" {
		t.Fatalf("expected ordered list, got %+v", list)
	}
}

func TestBookPrune(t *testing.T) {
	b := NewBook()
	b.Set(Order{ID: "1", Status: StatusFilled})
	b.Set(Order{ID: "2", Status: StatusAck})
	b.Set(Order{ID: "3", Status: StatusCanceled})
	if n := b.Prune(); n != 2 {
		t.Fatalf("expected 2 pruned got %d", n)
	}
	if _, ok := b.Get("2"); !ok {
		t.Fatalf("active order pruned")
	}
}
