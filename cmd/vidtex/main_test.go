package main

import (
	"errors"
	"testing"

	"github.com/gogpu/texbridge"
	"github.com/gogpu/texbridge/imageops"
)

func TestParseSize(t *testing.T) {
	w, h, err := parseSize("640x360")
	if err != nil || w != 640 || h != 360 {
		t.Errorf("parseSize = %d, %d, %v", w, h, err)
	}
	for _, bad := range []string{"640", "0x10", "ax10", "1x2x3"} {
		if _, _, err := parseSize(bad); err == nil {
			t.Errorf("parseSize(%q) succeeded", bad)
		}
	}
	if _, _, err := parseSize("-1x4"); !errors.Is(err, texbridge.ErrInvalidDimensions) {
		t.Errorf("parseSize(-1x4) = %v", err)
	}
}

func TestParseShape(t *testing.T) {
	w, h, ch, err := parseShape("1280X720x3")
	if err != nil || w != 1280 || h != 720 || ch != 3 {
		t.Errorf("parseShape = %d, %d, %d, %v", w, h, ch, err)
	}
	if _, _, _, err := parseShape("2x2"); err == nil {
		t.Error("parseShape(2x2) succeeded")
	}
}

func TestParseOps(t *testing.T) {
	steps, err := parseOps("gaussian, median,,bilateral")
	if err != nil {
		t.Fatal(err)
	}
	want := []imageops.Op{imageops.Gaussian, imageops.Median, imageops.Bilateral}
	if len(steps) != len(want) {
		t.Fatalf("parseOps len = %d", len(steps))
	}
	for i, s := range steps {
		if s.Op != want[i] || s.Params != imageops.DefaultParams(want[i]) {
			t.Errorf("step %d = %+v", i, s)
		}
	}
	if steps, _ := parseOps(""); len(steps) != 0 {
		t.Errorf("parseOps(\"\") = %v", steps)
	}
	if _, err := parseOps("sharpen"); err == nil {
		t.Error("parseOps(sharpen) succeeded")
	}
}

func TestOpenDevice(t *testing.T) {
	dev, err := openDevice("memory")
	if err != nil {
		t.Fatal(err)
	}
	_ = dev.Close()
	if _, err := openDevice("d3d"); err == nil {
		t.Error("openDevice(d3d) succeeded")
	}
}
