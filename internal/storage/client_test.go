package storage

import "testing"

func TestKeyMatchesExt(t *testing.T) {
	cases := []struct {
		key  string
		ext  string
		want bool
	}{
		// The same flag spellings fsutil.FindByExt accepts locally.
		{"scan_001.bmp", "bmp", true},
		{"scan_001.bmp", ".bmp", true},
		{"scan_001.bmp", "BMP", true},
		{"scan_001.BMP", ".bmp", true},
		{"scan_001.bmp", " .Bmp ", true},
		{"raw/nested/scan_001.bmp", "bmp", true},
		{"scan_001.png", ".bmp", false},
		{"scan_001.bmp.bak", ".bmp", false},
		{"noext", ".bmp", false},
	}
	for _, tc := range cases {
		if got := keyMatchesExt(tc.key, tc.ext); got != tc.want {
			t.Errorf("keyMatchesExt(%q, %q) = %v, want %v", tc.key, tc.ext, got, tc.want)
		}
	}
}
