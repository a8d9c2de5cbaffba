package netaddr

import "testing"

func TestParseFormatRoundTripV4(t *testing.T) {
	cases := []string{"10.0.0.0/8", "192.168.1.1/32", "0.0.0.0/0"}
	for _, c := range cases {
		na, err := Parse(c)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c, err)
		}
		if got := na.String(); got != c {
			t.Errorf("Parse(%q).String() = %q, want %q", c, got, c)
		}
	}
}

func TestParseFormatRoundTripV6(t *testing.T) {
	cases := []string{"2001:db8::1/128", "::/0", "fe80::/64"}
	for _, c := range cases {
		na, err := Parse(c)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c, err)
		}
		if got := na.String(); got != c {
			t.Errorf("Parse(%q).String() = %q, want %q", c, got, c)
		}
	}
}

func TestParseMappedV4(t *testing.T) {
	na, err := Parse("::ffff:10.1.2.3/128")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := na.String(), "::ffff:10.1.2.3/128"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestPrefixEqWithMaskZero(t *testing.T) {
	a, _ := Parse("10.0.0.0/8")
	b, _ := Parse("192.168.0.0/16")
	if !PrefixEqWithMask(a.Bytes, b.Bytes, 0) {
		t.Error("PrefixEqWithMask with n=0 must always be true")
	}
}

func TestPrefixEqWithMaskSelf(t *testing.T) {
	a, _ := Parse("10.1.2.0/24")
	if !PrefixEqWithMask(a.Bytes, a.Bytes, a.Bitlen) {
		t.Error("PrefixEqWithMask(p, p, p.bitlen) must be true")
	}
}

func TestPrefixEqRequiresMatchingBitlen(t *testing.T) {
	a, _ := Parse("10.1.0.0/16")
	b, _ := Parse("10.1.0.0/24")
	if PrefixEq(a, b) {
		t.Error("PrefixEq must require matching bitlen")
	}
}

func TestMaskTrailingBitsClearsTail(t *testing.T) {
	na, err := Parse("10.1.2.3/16")
	if err != nil {
		t.Fatal(err)
	}
	if na.Bytes[2] != 0 || na.Bytes[3] != 0 {
		t.Errorf("bits beyond bitlen must be zeroed, got %v", na.Bytes[:4])
	}
}
