package ring

import (
	"testing"

	"rangefinder-go/errcode"
)

func TestPushUntilFull(t *testing.T) {
	for _, c := range []int{1, 2, 5, 20} {
		r := New(c)
		for i := 0; i < c; i++ {
			if err := r.Push(byte(i)); err != nil {
				t.Fatalf("cap=%d push %d: %v", c, i, err)
			}
		}
		if err := r.Push(0xFF); err != errcode.BufferFull {
			t.Fatalf("cap=%d: want BufferFull, got %v", c, err)
		}
		if r.Len() != c {
			t.Fatalf("cap=%d: Len=%d", c, r.Len())
		}
		r.Flush()
		if r.Len() != 0 {
			t.Fatalf("cap=%d: Len after Flush=%d", c, r.Len())
		}
	}
}

func TestFIFOOrder(t *testing.T) {
	r := New(4)
	_ = r.Push('a')
	_ = r.Push('b')
	if b, _ := r.Take(); b != 'a' {
		t.Fatalf("first take=%q", b)
	}
	if b, _ := r.Take(); b != 'b' {
		t.Fatalf("second take=%q", b)
	}
	if _, err := r.Take(); err != errcode.BufferEmpty {
		t.Fatalf("want BufferEmpty, got %v", err)
	}
}

// Interleaved use without Flush must keep FIFO order past the capacity.
func TestOrderAcrossWrap(t *testing.T) {
	r := New(7)
	const N = 2000
	next := 0
	want := 0
	for want < N {
		for k := 0; k < 5 && next < N; k++ {
			if r.Push(byte(next)) != nil {
				break
			}
			next++
		}
		for k := 0; k < 3; k++ {
			b, err := r.Take()
			if err != nil {
				break
			}
			if b != byte(want) {
				t.Fatalf("mismatch at %d: got=%d", want, b)
			}
			want++
		}
	}
}

func TestPeekAt(t *testing.T) {
	r := New(3)
	_ = r.Push(1)
	_ = r.Push(2)
	_ = r.Push(3)
	_, _ = r.Take()
	_ = r.Push(4)

	for i, w := range []byte{2, 3, 4} {
		b, err := r.PeekAt(i)
		if err != nil || b != w {
			t.Fatalf("PeekAt(%d)=%d,%v want %d", i, b, err, w)
		}
	}
	if _, err := r.PeekAt(3); err != errcode.IndexOutOfRange {
		t.Fatalf("want IndexOutOfRange, got %v", err)
	}
	if _, err := r.PeekAt(-1); err != errcode.IndexOutOfRange {
		t.Fatalf("want IndexOutOfRange for negative, got %v", err)
	}
	if r.Len() != 3 {
		t.Fatal("PeekAt must not consume")
	}
}

func TestEndsWith(t *testing.T) {
	r := New(5)
	for _, b := range []byte("HC05") {
		_ = r.Push(b)
	}
	if r.Len() != 4 {
		t.Fatalf("Len=%d", r.Len())
	}
	cases := []struct {
		pat  string
		want bool
	}{
		{"05", true},
		{"05X", false},
		{"HC05", true},
		{"", true},
		{"xHC05", false},
		{"C0", false},
	}
	for _, tc := range cases {
		if got := r.EndsWith([]byte(tc.pat)); got != tc.want {
			t.Errorf("EndsWith(%q)=%v want %v", tc.pat, got, tc.want)
		}
	}
}

func TestEndsWithAfterWrap(t *testing.T) {
	r := New(4)
	for _, b := range []byte("xxOK") {
		_ = r.Push(b)
	}
	_, _ = r.Take()
	_, _ = r.Take()
	_ = r.Push('\r')
	_ = r.Push('\n')
	if !r.EndsWith([]byte("OK\r\n")) {
		t.Fatal("terminator not matched across the storage edge")
	}
}

func TestWriteAllOrNothing(t *testing.T) {
	r := New(4)
	if _, err := r.Write([]byte("abcde")); err != errcode.BufferFull {
		t.Fatalf("want BufferFull, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatal("partial write leaked")
	}
	if n, err := r.Write([]byte("abc")); n != 3 || err != nil {
		t.Fatalf("Write=%d,%v", n, err)
	}
	var tmp [8]byte
	if got := string(r.Bytes(tmp[:])); got != "abc" {
		t.Fatalf("Bytes=%q", got)
	}
}

func TestNewPanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(0)
}
