package models

import "testing"

// TestChannelsPath_String tests the path form for both kinds
func TestChannelsPath_String(t *testing.T) {
	if got := NewChannelsPath(false, "News").String(); got != "pvr://channels/tv/News/" {
		t.Errorf("String() = %q", got)
	}
	if got := NewChannelsPath(true, "Jazz/Blues").String(); got != "pvr://channels/radio/Jazz%2FBlues/" {
		t.Errorf("String() = %q", got)
	}
}

// TestParseChannelsPath tests that String and ParseChannelsPath agree
func TestParseChannelsPath(t *testing.T) {
	for _, p := range []ChannelsPath{
		NewChannelsPath(false, "All channels"),
		NewChannelsPath(true, "Jazz/Blues"),
	} {
		got, err := ParseChannelsPath(p.String())
		if err != nil {
			t.Fatalf("ParseChannelsPath(%q) unexpected error: %v", p.String(), err)
		}
		if got != p {
			t.Errorf("ParseChannelsPath(%q) = %+v, want %+v", p.String(), got, p)
		}
	}

	for _, bad := range []string{"", "pvr://channels/tv/", "pvr://channels/tv", "pvr://channels/ham/x/", "http://x/"} {
		if _, err := ParseChannelsPath(bad); err == nil {
			t.Errorf("ParseChannelsPath(%q) expected error", bad)
		}
	}
}
