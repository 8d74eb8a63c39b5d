package sr

import "testing"

func TestAfterOrdinaryOrder(t *testing.T) {
	if !after(5, 4) {
		t.Fatal("5 should be after 4")
	}
	if after(4, 5) {
		t.Fatal("4 should not be after 5")
	}
	if after(4, 4) {
		t.Fatal("a value is not after itself")
	}
}

func TestAfterWrapAroundZero(t *testing.T) {
	// The whole point of modular comparison: 0 is "after" 2^32-1.
	if !after(0, 0xFFFFFFFF) {
		t.Fatal("0 should be after 2^32-1 (wrap-around)")
	}
	if after(0xFFFFFFFF, 0) {
		t.Fatal("2^32-1 should not be after 0")
	}
}

func TestAfterNearWrapBoundary(t *testing.T) {
	if !after(0xFFFFFFFF, 0xFFFFFFFE) {
		t.Fatal("2^32-1 should be after 2^32-2")
	}
	if !after(1, 0xFFFFFFFF) {
		t.Fatal("1 should be after 2^32-1")
	}
	if !after(2, 0xFFFFFFFF) {
		t.Fatal("2 should be after 2^32-1 within window bound")
	}
}
