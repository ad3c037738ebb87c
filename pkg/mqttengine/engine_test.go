package mqttengine

import "testing"

func TestFeatureIDFromTopic(t *testing.T) {
	cases := []struct {
		stem string
		want string
	}{
		{"living_room_plc/relay/ro_1_01", "ro_1_01"},
		{"living_room_plc/input/di_2_03", "di_2_03"},
		{"ro_1_01", "ro_1_01"},
		{"", ""},
	}
	for _, c := range cases {
		if got := featureIDFromTopic(c.stem); got != c.want {
			t.Errorf("featureIDFromTopic(%q) = %q, want %q", c.stem, got, c.want)
		}
	}
}
