package texbridge

import "testing"

func TestDecideResize(t *testing.T) {
	tex16 := TextureDescriptor{Format: FormatBGRA8, Width: 16, Height: 16, Depth: 1}

	tests := []struct {
		name string
		in   ResizeInput
		want ResizeAction
	}{
		{
			name: "equal sizes",
			in:   ResizeInput{Width: 16, Height: 16, Depth: 1, Texture: tex16, Allocated: true, Reallocatable: true},
			want: ResizeKeep,
		},
		{
			name: "equal sizes fixed with resize",
			in:   ResizeInput{Width: 16, Height: 16, Depth: 1, Texture: tex16, Allocated: true, ResizeRequested: true},
			want: ResizeKeep,
		},
		{
			name: "differ with resize",
			in:   ResizeInput{Width: 8, Height: 8, Depth: 1, Texture: tex16, Allocated: true, ResizeRequested: true, Reallocatable: true},
			want: ResizeResample,
		},
		{
			name: "differ with resize on fixed sink",
			in:   ResizeInput{Width: 8, Height: 8, Depth: 1, Texture: tex16, Allocated: true, ResizeRequested: true},
			want: ResizeResample,
		},
		{
			name: "differ without resize",
			in:   ResizeInput{Width: 8, Height: 8, Depth: 1, Texture: tex16, Allocated: true, Reallocatable: true},
			want: ResizeReallocate,
		},
		{
			name: "differ without resize on fixed sink",
			in:   ResizeInput{Width: 8, Height: 8, Depth: 1, Texture: tex16, Allocated: true},
			want: ResizeFail,
		},
		{
			name: "unallocated",
			in:   ResizeInput{Width: 8, Height: 8, Depth: 1, ResizeRequested: true},
			want: ResizeReallocate,
		},
		{
			name: "depth differs",
			in: ResizeInput{Width: 4, Height: 4, Depth: 2, Allocated: true, Reallocatable: true,
				Texture: TextureDescriptor{Format: FormatR8, Width: 4, Height: 4, Depth: 4}},
			want: ResizeReallocate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecideResize(tt.in); got != tt.want {
				t.Errorf("DecideResize = %s, want %s", got, tt.want)
			}
		})
	}
}
