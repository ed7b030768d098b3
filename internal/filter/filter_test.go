package filter

import "testing"

func TestTitleFilter_Match(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		title   string
		want    bool
	}{
		{
			name:    "include term matches",
			include: []string{"technical program", "sre"},
			title:   "Senior Technical Program Manager",
			want:    true,
		},
		{
			name:    "case insensitive",
			include: []string{"PLATFORM"},
			title:   "platform engineer",
			want:    true,
		},
		{
			name:    "no include term matches",
			include: []string{"tpm", "sre"},
			title:   "Frontend Engineer",
			want:    false,
		},
		{
			name:    "word boundary prevents substring hit",
			include: []string{"ai"},
			title:   "Email Marketing Specialist",
			want:    false,
		},
		{
			name:    "exclude wins over include",
			include: []string{"program"},
			exclude: []string{"intern"},
			title:   "Program Manager Intern",
			want:    false,
		},
		{
			name:  "empty include list passes all",
			title: "Anything At All",
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewTitleFilter(tt.include, tt.exclude)
			if got := f.Match(tt.title); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}
