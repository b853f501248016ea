package platform

import "testing"

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"amd64", "amd64"},
		{"x86_64", "amd64"},
		{"arm64", "arm64"},
		{"aarch64", "arm64"},
		{"riscv64", "riscv64"},
	}
	for _, tt := range tests {
		if got := normalizeArch(tt.input); got != tt.want {
			t.Errorf("normalizeArch(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMapFamily(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debian", FamilyDebian},
		{"Ubuntu", FamilyDebian},
		{" rhel ", FamilyRHEL},
		{"manjaro", FamilyArch},
		{"opensuse", FamilySUSE},
		{"nixos", FamilyUnknown},
		{"", FamilyUnknown},
	}
	for _, tt := range tests {
		if got := mapFamily(tt.input); got != tt.want {
			t.Errorf("mapFamily(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizePlatform(t *testing.T) {
	if got := normalizePlatform("  Arch \n"); got != "arch" {
		t.Errorf("normalizePlatform() = %q, want arch", got)
	}
}
