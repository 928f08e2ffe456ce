package config

import (
	"testing"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input    string
		expected ByteSize
		wantErr  bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"100B", 100, false},
		{"1KB", 1000, false},
		{"1.5KB", 1500, false},
		{"1K", 1024, false},
		{"1KiB", 1024, false},
		{"1.5 KiB", 1536, false},
		{"1MB", 1000000, false},
		{"1MiB", 1048576, false},
		{"2gib", 2147483648, false},
		{"", 0, true},
		{"abc", 0, true},
		{"10XB", 0, true},
		{"1.2.3MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("ParseByteSize(%q) = %v, want %v", tt.input, int64(got), int64(tt.expected))
			}
		})
	}
}

func TestByteSizeString(t *testing.T) {
	tests := []struct {
		input    ByteSize
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1 KiB"},
		{1536, "1.5 KiB"},
		{ByteSize(MiB), "1 MiB"},
		{ByteSize(3 * GiB / 2), "1.5 GiB"},
		{-1, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.input.String(); got != tt.expected {
				t.Errorf("ByteSize(%d).String() = %q, want %q", int64(tt.input), got, tt.expected)
			}
		})
	}
}
