package serial

import "testing"

func TestDecodeStandard(t *testing.T) {
	v, err := Decode("1042")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v.Base != 1042 || v.Size != SizeStandard || v.Color != ColorDefault {
		t.Fatalf("unexpected variant: %+v", v)
	}
}

func TestDecodeSuffixes(t *testing.T) {
	cases := []struct {
		in    string
		base  int
		size  Size
		color Color
	}{
		{"104SF", 104, SizeSixFoot, ColorDefault},
		{"104G", 104, SizeStandard, ColorGreen},
		{"104GR", 104, SizeStandard, ColorGrey},
		{"104B", 104, SizeStandard, ColorBlue},
		{"104BG", 104, SizeStandard, ColorBurgundy},
		{"104SFGR", 104, SizeSixFoot, ColorGrey},
		{"104SFB", 104, SizeSixFoot, ColorBlue},
		{"7SFBG", 7, SizeSixFoot, ColorBurgundy},
	}
	for _, tc := range cases {
		v, err := Decode(tc.in)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", tc.in, err)
		}
		if v.Base != tc.base || v.Size != tc.size || v.Color != tc.color {
			t.Fatalf("Decode(%q) = %+v, want base=%d size=%s color=%s", tc.in, v, tc.base, tc.size, tc.color)
		}
	}
}

// 长代码优先：BG 必须在 G 之前匹配，GR 必须在 R/G 之前匹配
func TestDecodeLongestMatchFirst(t *testing.T) {
	v, _ := Decode("55BG")
	if v.Color != ColorBurgundy {
		t.Fatalf("55BG should decode as burgundy, got %s", v.Color)
	}
	v, _ = Decode("55GR")
	if v.Color != ColorGrey {
		t.Fatalf("55GR should decode as grey, got %s", v.Color)
	}
}

func TestRoundTrip(t *testing.T) {
	sizes := []Size{SizeStandard, SizeSixFoot}
	colors := []Color{ColorDefault, ColorGreen, ColorGrey, ColorBlue, ColorBurgundy}
	for _, s := range sizes {
		for _, c := range colors {
			want := Variant{Base: 982, Size: s, Color: c}
			got, err := Decode(Encode(want))
			if err != nil {
				t.Fatalf("round trip failed for %+v: %v", want, err)
			}
			if got != want {
				t.Fatalf("Decode(Encode(%+v)) = %+v", want, got)
			}
		}
	}
}

func TestNext(t *testing.T) {
	next, err := Next("104SFGR")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if next != "105SFGR" {
		t.Fatalf("expected 105SFGR, got %s", next)
	}
	next, _ = Next("999")
	if next != "1000" {
		t.Fatalf("expected 1000, got %s", next)
	}
}

func TestDecodeUnknownSuffixFallsBack(t *testing.T) {
	// 未知后缀不是错误，回退到默认构型
	if _, err := Decode("XYZ"); err == nil {
		t.Fatal("expected error for serial without numeric prefix")
	}
	v, err := Decode("120XYZ")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v.Base != 120 || v.Size != SizeStandard || v.Color != ColorDefault {
		t.Fatalf("expected base 120 with default variant, got %+v", v)
	}
}
