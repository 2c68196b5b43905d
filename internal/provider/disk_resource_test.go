package provider

import "testing"

func TestSizeFromBytes(t *testing.T) {
	t.Parallel()

	cases := map[uint64]string{
		10 << 30:   "10G",
		1 << 40:    "1T",
		1536 << 20: "1536M",
		512 << 10:  "512K",
		1000:       "1K",
	}
	for b, want := range cases {
		if got := sizeFromBytes(b); got != want {
			t.Fatalf("sizeFromBytes(%d) = %s, want %s", b, got, want)
		}
	}
}
