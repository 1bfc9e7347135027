package loader

import "testing"

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"[$-409]mmm d, yyyy", true},
		{"h:mm AM/PM", true},
		{"[h]:mm:ss", true},
		{"[mm]:ss", true},
		{"#,##0.00", false},
		{"0.00%", false},
		{"[Red]#,##0;[Blue]-#,##0", false},
		{"[White]0.0", false},
		{`0 "days"`, false},
		{`0\d`, false},
		{"0.0_)", false},
		{"#,##0*-", false},
	}
	for _, tt := range tests {
		if got := isDateFormatCode(tt.code); got != tt.want {
			t.Errorf("isDateFormatCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsDateNumFmt(t *testing.T) {
	for _, id := range []int{14, 17, 22, 27, 45, 47, 57} {
		if !isDateNumFmt(id) {
			t.Errorf("format %d should be a date", id)
		}
	}
	for _, id := range []int{0, 2, 4, 10, 11, 37, 49} {
		if isDateNumFmt(id) {
			t.Errorf("format %d should not be a date", id)
		}
	}
}
