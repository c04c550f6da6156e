package texbridge

import (
	"fmt"

	"github.com/gogpu/texbridge/device"
	"github.com/gogpu/texbridge/internal/convert"
)

// TextureFormat is the pixel format of a sink's texture.
type TextureFormat = device.Format

// Texture formats a buffer can be negotiated to.
const (
	FormatR8    = device.FormatR8
	FormatBGRA8 = device.FormatBGRA8
)

// TextureDescriptor describes a sink's texture.
type TextureDescriptor = device.Descriptor

// ConversionKind is the layout transformation applied before upload.
type ConversionKind uint8

const (
	// ConvertNone uploads the buffer bytes unchanged.
	ConvertNone ConversionKind = iota

	// ConvertGrayToBGRA replicates gray into B, G and R with opaque alpha.
	ConvertGrayToBGRA

	// ConvertBGRToBGRA appends an opaque alpha channel.
	ConvertBGRToBGRA
)

// String returns the conversion name.
func (k ConversionKind) String() string {
	switch k {
	case ConvertNone:
		return "none"
	case ConvertGrayToBGRA:
		return "gray->bgra"
	case ConvertBGRToBGRA:
		return "bgr->bgra"
	default:
		return fmt.Sprintf("ConversionKind(%d)", k)
	}
}

// ConversionPlan is the outcome of format negotiation for one publish.
type ConversionPlan struct {
	TargetFormat      TextureFormat
	Conversion        ConversionKind
	TargetElementSize int
}

// Apply converts src, the buffer bytes, into dst, which must hold
// ElementCount × TargetElementSize bytes.
func (p ConversionPlan) Apply(dst, src []byte, alpha byte) error {
	switch p.Conversion {
	case ConvertNone:
		return convert.Copy(dst, src)
	case ConvertGrayToBGRA:
		return convert.GrayToBGRA(dst, src, alpha)
	case ConvertBGRToBGRA:
		return convert.BGRToBGRA(dst, src, alpha)
	default:
		return fmt.Errorf("%w: conversion %s", ErrUnsupportedFormat, p.Conversion)
	}
}

// Negotiate maps a buffer layout to the texture format that holds it:
//
//	u8 × 1 -> R8,    no conversion
//	u8 × 3 -> BGRA8, alpha appended
//	u8 × 4 -> BGRA8, no conversion
//
// Every other pair fails with ErrUnsupportedFormat.
func Negotiate(ct ChannelType, channels int) (ConversionPlan, error) {
	if ct == ChannelU8 {
		switch channels {
		case 1:
			return ConversionPlan{TargetFormat: FormatR8, Conversion: ConvertNone, TargetElementSize: 1}, nil
		case 3:
			return ConversionPlan{TargetFormat: FormatBGRA8, Conversion: ConvertBGRToBGRA, TargetElementSize: 4}, nil
		case 4:
			return ConversionPlan{TargetFormat: FormatBGRA8, Conversion: ConvertNone, TargetElementSize: 4}, nil
		}
	}
	return ConversionPlan{}, fmt.Errorf("%w: %s × %d", ErrUnsupportedFormat, ct, channels)
}

// NegotiateFor negotiates for a specific sink kind. Render targets are
// always BGRA8, so single-channel buffers are expanded to gray BGRA.
func NegotiateFor(kind SinkKind, ct ChannelType, channels int) (ConversionPlan, error) {
	plan, err := Negotiate(ct, channels)
	if err != nil {
		return plan, err
	}
	if kind == KindRenderTarget && plan.TargetFormat == FormatR8 {
		plan = ConversionPlan{TargetFormat: FormatBGRA8, Conversion: ConvertGrayToBGRA, TargetElementSize: 4}
	}
	return plan, nil
}
