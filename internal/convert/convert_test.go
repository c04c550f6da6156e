package convert

import (
	"bytes"
	"testing"
)

func TestGrayToBGRA(t *testing.T) {
	dst := make([]byte, 8)
	if err := GrayToBGRA(dst, []byte{100, 7}, 255); err != nil {
		t.Fatal(err)
	}
	want := []byte{100, 100, 100, 255, 7, 7, 7, 255}
	if !bytes.Equal(dst, want) {
		t.Errorf("GrayToBGRA = %v, want %v", dst, want)
	}
}

func TestBGRToBGRA(t *testing.T) {
	dst := make([]byte, 8)
	if err := BGRToBGRA(dst, []byte{1, 2, 3, 4, 5, 6}, 255); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 255, 4, 5, 6, 255}
	if !bytes.Equal(dst, want) {
		t.Errorf("BGRToBGRA = %v, want %v", dst, want)
	}
}

func TestConvertSizeErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"copy", func() error { return Copy(make([]byte, 2), make([]byte, 3)) }},
		{"gray", func() error { return GrayToBGRA(make([]byte, 3), make([]byte, 1), 255) }},
		{"bgr ragged", func() error { return BGRToBGRA(make([]byte, 4), make([]byte, 4), 255) }},
		{"bgr short dst", func() error { return BGRToBGRA(make([]byte, 3), make([]byte, 3), 255) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBGRAToRGBA(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	BGRAToRGBA(pix)
	want := []byte{3, 2, 1, 4, 7, 6, 5, 8}
	if !bytes.Equal(pix, want) {
		t.Errorf("BGRAToRGBA = %v, want %v", pix, want)
	}
}

func TestStripRowPadding(t *testing.T) {
	src := []byte{
		1, 2, 0, 0,
		3, 4, 0, 0,
	}
	dst := make([]byte, 4)
	StripRowPadding(dst, src, 2, 4, 2)
	if !bytes.Equal(dst, []byte{1, 2, 3, 4}) {
		t.Errorf("StripRowPadding = %v", dst)
	}
}
