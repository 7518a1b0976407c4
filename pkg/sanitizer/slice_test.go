package sanitizer

import (
	"reflect"
	"testing"
)

func TestNormalizeStringSlice(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "dedupes after normalization",
			input: []string{" Court 1 ", "Court  1", "Court 2"},
			want:  []string{"Court 1", "Court 2"},
		},
		{
			name:  "drops empties",
			input: []string{"", "  ", "Turf 1"},
			want:  []string{"Turf 1"},
		},
		{
			name:  "nil slice",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeStringSlice(tt.input, NormalizeLabel)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeStringSlice(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabels(t *testing.T) {
	got := NormalizeLabels([]string{" Badminton Synthetic ", "badminton synthetic", "Snooker"})
	want := []string{"Badminton Synthetic", "badminton synthetic", "Snooker"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeLabels() = %v, want %v", got, want)
	}
}
