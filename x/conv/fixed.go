package conv

// Fixed2 writes v/100 with exactly two decimals, e.g. 123 -> "1.23" and
// -5 -> "-0.05". With sign set, non-negative values get a leading '+'.
// The text is right-aligned in buf; when it does not fit, Fixed2 returns
// buf[:0]. 24 bytes always suffice.
func Fixed2(buf []byte, v int64, sign bool) []byte {
	neg := v < 0
	var u uint64
	if neg {
		u = uint64(-v)
	} else {
		u = uint64(v)
	}
	need := 3 + width(u/100)
	if neg || sign {
		need++
	}
	if len(buf) < need {
		return buf[:0]
	}
	i := len(buf)
	frac := u % 100
	i--
	buf[i] = byte('0' + frac%10)
	i--
	buf[i] = byte('0' + frac/10)
	i--
	buf[i] = '.'
	i -= len(Utoa(buf[:i], u/100))
	switch {
	case neg:
		i--
		buf[i] = '-'
	case sign:
		i--
		buf[i] = '+'
	}
	return buf[i:]
}

// width is the number of decimal digits in n.
func width(n uint64) int {
	w := 1
	for n >= 10 {
		n /= 10
		w++
	}
	return w
}

// Digits fills dst with the low decimal digits of n, least significant first.
// Digits beyond n's width are zero.
func Digits(dst []uint8, n uint32) {
	for i := range dst {
		dst[i] = uint8(n % 10)
		n /= 10
	}
}
