package rdtconf

import "testing"

func TestDefaults(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if c.Variant != SR {
		t.Fatalf("expected default variant SR, got %s", c.Variant)
	}
	if c.WindowSize != 500 {
		t.Fatalf("expected default window 500, got %d", c.WindowSize)
	}
}

func TestValidateRejectsOversizeWindow(t *testing.T) {
	c := Default()
	c.WindowSize = 1 << 31
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for window_size >= 2^31")
	}
}

func TestValidateRejectsBadVariant(t *testing.T) {
	c := Default()
	c.Variant = "wat"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for invalid variant")
	}
}
