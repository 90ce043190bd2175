package btmon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCanonicalAddress(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF", true},
		{"AA-BB-CC-DD-EE-FF", "AA:BB:CC:DD:EE:FF", true},
		{" 00:1b:63:01:02:03 ", "00:1B:63:01:02:03", true},
		{"00:00:00:00:00:00", "", false},
		{"FF:FF:FF:FF:FF:FF", "", false},
		{"AA:BB:CC:DD:EE", "", false},
		{"AA:BB:CC:DD:EE:GG", "", false},
		{"AABB:CC:DD:EE:FF", "", false},
		{"AA.BB.CC.DD.EE.FF", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalAddress(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("CanonicalAddress(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestProximityID(t *testing.T) {
	tests := []struct {
		uuid, major, minor string
		want               string
	}{
		{"F7826DA6-4FA2-4E98-8024-BC5B71E0893E", "1", "2", "f7826da6-4fa2-4e98-8024-bc5b71e0893e-1-2"},
		{"f7826da6-4fa2-4e98-8024-bc5b71e0893e", "", "", "f7826da6-4fa2-4e98-8024-bc5b71e0893e"},
		{"", "1", "2", ""},
	}
	for _, tt := range tests {
		if got := ProximityID(tt.uuid, tt.major, tt.minor); got != tt.want {
			t.Errorf("ProximityID(%q, %q, %q) = %q, want %q", tt.uuid, tt.major, tt.minor, got, tt.want)
		}
	}
}

func TestAttributeRecord_IsEmpty(t *testing.T) {
	if !(AttributeRecord{}).IsEmpty() {
		t.Error("zero record IsEmpty() = false")
	}
	rssi := -50
	for name, rec := range map[string]AttributeRecord{
		"rssi":     {RSSI: &rssi},
		"le":       {LE: true},
		"services": {ServiceUUIDs: []string{"Heart Rate (0x180d)"}},
		"name":     {Name: "x"},
	} {
		if rec.IsEmpty() {
			t.Errorf("%s: IsEmpty() = true", name)
		}
	}
}

func TestLookupVendor(t *testing.T) {
	if got := LookupVendor("B8:27:EB:00:00:01"); got != "Raspberry Pi Foundation" {
		t.Errorf("LookupVendor(B8:27:EB) = %q", got)
	}
	if got := LookupVendor("12:34:56:78:9A:BC"); got != VendorUnknown {
		t.Errorf("LookupVendor(unknown) = %q, want %q", got, VendorUnknown)
	}
	if got := LookupVendor("B8"); got != VendorUnknown {
		t.Errorf("LookupVendor(short) = %q", got)
	}
}

func TestFileMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "btmon.log")
	m, err := NewFileMirror(path, 16)
	if err != nil {
		t.Fatalf("NewFileMirror() error = %v", err)
	}

	m.MirrorChunk(Chunk{Lines: []RawLine{
		{Text: "> HCI Event: Inquiry Complete (0x01) plen 1"},
		{Text: "        Status: Success (0x00)"},
	}})
	m.MirrorLine(RawLine{Text: "raw line"})

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Close is idempotent and later writes are discarded.
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	m.MirrorLine(RawLine{Text: "after close"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "> HCI Event: Inquiry Complete (0x01) plen 1\n        Status: Success (0x00)\n\nraw line\n"
	if string(data) != want {
		t.Errorf("mirror file = %q, want %q", data, want)
	}
}

func TestFileMirror_DropsWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btmon.log")
	m, err := NewFileMirror(path, 1)
	if err != nil {
		t.Fatalf("NewFileMirror() error = %v", err)
	}

	for i := 0; i < 1000; i++ {
		m.MirrorLine(RawLine{Text: strings.Repeat("x", 64)})
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	written := uint64(strings.Count(string(data), "\n"))
	if written+m.Dropped() != 1000 {
		t.Errorf("written %d + dropped %d != 1000", written, m.Dropped())
	}
}
