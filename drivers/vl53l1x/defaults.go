package vl53l1x

// DefaultTable is the ultra-lite configuration loaded from register 0x2D
// through 0x87. The last two entries land on the interrupt clear and mode
// start registers and are left at zero; Configure drives those explicitly.
var DefaultTable = [91]byte{
	0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x02, 0x08,
	0x00, 0x08, 0x10, 0x01, 0x01, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x00, 0x0F, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x20, 0x0b, 0x00, 0x00, 0x02, 0x0a, 0x21,
	0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0xc8,
	0x00, 0x00, 0x38, 0xff, 0x01, 0x00, 0x08, 0x00,
	0x00, 0x01, 0xcc, 0x0f, 0x01, 0xf1, 0x0d, 0x01,
	0x68, 0x00, 0x80, 0x08, 0xb8, 0x00, 0x00, 0x00,
	0x00, 0x0f, 0x89, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x0f, 0x0d, 0x0e, 0x0e, 0x00,
	0x00, 0x02, 0xc7, 0xff, 0x9B, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x00,
}
