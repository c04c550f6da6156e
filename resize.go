package texbridge

import "fmt"

// ResizeAction is what a publish does when buffer and texture sizes differ.
type ResizeAction uint8

const (
	// ResizeKeep uploads without touching sizes.
	ResizeKeep ResizeAction = iota

	// ResizeResample scales the buffer, in place, to the texture size.
	ResizeResample

	// ResizeReallocate replaces the texture with one of the buffer's size.
	ResizeReallocate

	// ResizeFail rejects the publish with ErrSizeMismatch.
	ResizeFail
)

func (a ResizeAction) String() string {
	switch a {
	case ResizeKeep:
		return "keep"
	case ResizeResample:
		return "resample"
	case ResizeReallocate:
		return "reallocate"
	case ResizeFail:
		return "fail"
	default:
		return fmt.Sprintf("ResizeAction(%d)", a)
	}
}

// ResizeInput carries the facts DecideResize needs.
type ResizeInput struct {
	// Buffer extents.
	Width, Height, Depth int

	// Texture is the sink descriptor; meaningful only when Allocated.
	Texture   TextureDescriptor
	Allocated bool

	// ResizeRequested asks for the buffer to be scaled to the texture.
	ResizeRequested bool

	// Reallocatable is false for sinks of fixed size.
	Reallocatable bool
}

// DecideResize applies the resize policy:
//
//   - an unallocated sink takes the buffer size
//   - equal sizes keep both
//   - differing sizes resample the buffer when a resize was requested
//   - otherwise the texture is reallocated, or the publish fails when the
//     sink is fixed
func DecideResize(in ResizeInput) ResizeAction {
	if !in.Allocated {
		return ResizeReallocate
	}
	if in.Width == in.Texture.Width && in.Height == in.Texture.Height && in.Depth == in.Texture.Depth {
		return ResizeKeep
	}
	if in.ResizeRequested {
		return ResizeResample
	}
	if in.Reallocatable {
		return ResizeReallocate
	}
	return ResizeFail
}
