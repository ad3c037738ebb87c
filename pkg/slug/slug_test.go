package slug

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Living Room PLC", "living_room_plc"},
		{"  leading and trailing  ", "leading_and_trailing"},
		{"already_snake", "already_snake"},
		{"Multi---Dash!!Run", "multi_dash_run"},
		{"M503", "m503"},
		{"", ""},
		{"___", ""},
	}

	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
