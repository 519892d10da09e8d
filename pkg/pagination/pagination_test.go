package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: 0, want: DefaultLimit},
		{in: -3, want: DefaultLimit},
		{in: 10, want: 10},
		{in: 1000, want: MaxLimit},
	}
	for _, tc := range cases {
		if got := NormalizeLimit(tc.in); got != tc.want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("LimitWithBuffer(10) = %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("unexpected cursor %+v", out)
	}
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor should be nil, got %v %v", c, err)
	}
}

func TestSeqCursor(t *testing.T) {
	seq, err := ParseSeqCursor(EncodeSeqCursor(42))
	if err != nil || seq != 42 {
		t.Fatalf("expected 42, got %d %v", seq, err)
	}
	if seq, err := ParseSeqCursor(""); err != nil || seq != 0 {
		t.Fatalf("empty cursor should be 0, got %d %v", seq, err)
	}
	if _, err := ParseSeqCursor("not-base64!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseSeqCursor(EncodeCursor(Cursor{ID: uuid.New()})); err == nil {
		t.Fatal("expected format error for time cursor")
	}
}
