package sr

// after reports whether a is ahead of b in modular sequence order (spec
// §4.5): a > b (mod 2^32) iff (a-b) mod 2^32 is in (0, 2^31], so a value
// is never after itself. The invariant
// WINDOW_SIZE < 2^31 (enforced by rdtconf.Conf.Validate) guarantees this
// stays unambiguous even as seq wraps past 2^32-1 back to 0.
func after(a, b uint32) bool {
	d := a - b
	return d != 0 && d <= 1<<31
}
