package conv

import "testing"

func TestUtoa(t *testing.T) {
	var b [20]byte
	if got := string(Utoa(b[:], 0)); got != "0" {
		t.Fatalf("Utoa(0)=%q", got)
	}
	if got := string(Utoa(b[:], 18446744073709551615)); got != "18446744073709551615" {
		t.Fatalf("Utoa max=%q", got)
	}
}

func TestFixed2(t *testing.T) {
	var b [24]byte
	cases := []struct {
		v    int64
		sign bool
		want string
	}{
		{123, false, "1.23"},
		{0, false, "0.00"},
		{5, false, "0.05"},
		{98, true, "+0.98"},
		{100, true, "+1.00"},
		{-50, true, "-0.50"},
		{-5, false, "-0.05"},
		{40000, false, "400.00"},
		{-9223372036854775808, false, "-92233720368547758.08"},
	}
	for _, tc := range cases {
		if got := string(Fixed2(b[:], tc.v, tc.sign)); got != tc.want {
			t.Fatalf("Fixed2(%d,%v)=%q want %q", tc.v, tc.sign, got, tc.want)
		}
	}
}

func TestDigits(t *testing.T) {
	var d [3]uint8
	Digits(d[:], 123)
	if d != [3]uint8{3, 2, 1} {
		t.Fatalf("Digits(123)=%v", d)
	}
	Digits(d[:], 4567)
	if d != [3]uint8{7, 6, 5} {
		t.Fatalf("Digits(4567)=%v", d)
	}
	Digits(d[:], 8)
	if d != [3]uint8{8, 0, 0} {
		t.Fatalf("Digits(8)=%v", d)
	}
}

func TestFixed2_ShortBuffer(t *testing.T) {
	cases := []struct {
		size int
		v    int64
		sign bool
		want string
	}{
		{4, 12345, false, ""},
		{5, 12345, false, ""},
		{6, 12345, false, "123.45"},
		{4, 98, true, ""},
		{5, 98, true, "+0.98"},
		{4, -5, false, ""},
		{5, -5, false, "-0.05"},
		{3, 0, false, ""},
		{4, 0, false, "0.00"},
	}
	for _, tc := range cases {
		buf := make([]byte, tc.size)
		if got := string(Fixed2(buf, tc.v, tc.sign)); got != tc.want {
			t.Fatalf("Fixed2(len %d, %d, %v)=%q want %q", tc.size, tc.v, tc.sign, got, tc.want)
		}
	}
}
