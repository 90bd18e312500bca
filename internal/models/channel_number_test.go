package models

import (
	"testing"
)

// TestChannelNumber_IsValid tests that only numbers with a major part are valid
func TestChannelNumber_IsValid(t *testing.T) {
	if UnassignedChannelNumber.IsValid() {
		t.Error("UnassignedChannelNumber should not be valid")
	}
	if NewChannelNumber(0, 3).IsValid() {
		t.Error("0.3 should not be valid")
	}
	if !NewChannelNumber(1, 0).IsValid() {
		t.Error("1 should be valid")
	}
}

// TestChannelNumber_Compare tests the (major, minor) ordering
func TestChannelNumber_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b ChannelNumber
		want int
	}{
		{"equal", NewChannelNumber(5, 1), NewChannelNumber(5, 1), 0},
		{"major wins", NewChannelNumber(4, 9), NewChannelNumber(5, 0), -1},
		{"minor breaks tie", NewChannelNumber(5, 2), NewChannelNumber(5, 1), 1},
		{"unassigned first", UnassignedChannelNumber, NewChannelNumber(1, 0), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := tt.a.Less(tt.b); got != (tt.want < 0) {
				t.Errorf("Less(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want < 0)
			}
		})
	}
}

// TestChannelNumber_String tests formatting with and without a minor part
func TestChannelNumber_String(t *testing.T) {
	if got := NewChannelNumber(12, 0).String(); got != "12" {
		t.Errorf("String() = %q, want %q", got, "12")
	}
	if got := NewChannelNumber(12, 3).String(); got != "12.3" {
		t.Errorf("String() = %q, want %q", got, "12.3")
	}
	if got := UnassignedChannelNumber.String(); got != "0" {
		t.Errorf("String() = %q, want %q", got, "0")
	}
}

// TestParseChannelNumber tests parsing valid and invalid numbers
func TestParseChannelNumber(t *testing.T) {
	tests := []struct {
		input   string
		want    ChannelNumber
		wantErr bool
	}{
		{input: "7", want: NewChannelNumber(7, 0)},
		{input: " 7.2 ", want: NewChannelNumber(7, 2)},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "7.x", wantErr: true},
		{input: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChannelNumber(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseChannelNumber(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChannelNumber(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseChannelNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
