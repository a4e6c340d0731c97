package messages

import (
	"reflect"
	"testing"
)

func TestUniqueStrings(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "repeats collapse",
			input: []string{"u1", "u2", "u1", "u1"},
			want:  []string{"u1", "u2"},
		},
		{
			name:  "blanks dropped",
			input: []string{"", "u1"},
			want:  []string{"u1"},
		},
		{
			name:  "nil input",
			input: nil,
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := uniqueStrings(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("uniqueStrings(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
