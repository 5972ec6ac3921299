package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:30", TimeOfDay{9, 30}, false},
		{"00:00", TimeOfDay{0, 0}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{"09:30:00", TimeOfDay{9, 30}, false},
		{"24:00", TimeOfDay{}, true},
		{"09:60", TimeOfDay{}, true},
		{"nine", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestTimeOfDayScan(t *testing.T) {
	var tod TimeOfDay
	if err := tod.Scan(time.Date(2025, 3, 10, 14, 45, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if tod != (TimeOfDay{14, 45}) {
		t.Fatalf("scan time.Time = %v", tod)
	}

	if err := tod.Scan([]byte("08:15:00")); err != nil {
		t.Fatal(err)
	}
	if tod != (TimeOfDay{8, 15}) {
		t.Fatalf("scan bytes = %v", tod)
	}

	if err := tod.Scan(42); err == nil {
		t.Fatal("scanning an int should fail")
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	b, err := json.Marshal(TimeOfDay{7, 5})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"07:05"` {
		t.Fatalf("marshal = %s", b)
	}

	var tod TimeOfDay
	if err := json.Unmarshal([]byte(`"21:30"`), &tod); err != nil {
		t.Fatal(err)
	}
	if tod != (TimeOfDay{21, 30}) {
		t.Fatalf("unmarshal = %v", tod)
	}
}

func TestTimeOfDayOn(t *testing.T) {
	day := time.Date(2025, 3, 10, 18, 22, 51, 0, time.UTC)
	got := TimeOfDay{9, 30}.On(day)
	want := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("On = %v, want %v", got, want)
	}
}

func TestDaySetScanValue(t *testing.T) {
	var d DaySet
	if err := d.Scan("1,3,5"); err != nil {
		t.Fatal(err)
	}
	if len(d) != 3 || !d.Contains(time.Monday) || !d.Contains(time.Friday) {
		t.Fatalf("scan = %v", d)
	}
	if d.Contains(time.Sunday) {
		t.Fatal("day set should not contain Sunday")
	}

	v, err := d.Value()
	if err != nil || v.(string) != "1,3,5" {
		t.Fatalf("value = %v, %v", v, err)
	}

	if err := d.Scan(""); err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Fatalf("empty scan = %v, want nil", d)
	}

	if err := d.Scan("1,7"); err == nil {
		t.Fatal("weekday 7 should be rejected")
	}
}

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{"reason": "safety_window", "lateness_seconds": 121.0}
	v, err := m.Value()
	if err != nil {
		t.Fatal(err)
	}

	var back JSONMap
	if err := back.Scan(v); err != nil {
		t.Fatal(err)
	}
	if back["reason"] != "safety_window" || back["lateness_seconds"] != 121.0 {
		t.Fatalf("round trip = %v", back)
	}

	var nilMap JSONMap
	v, err = nilMap.Value()
	if err != nil || string(v.([]byte)) != "{}" {
		t.Fatalf("nil map value = %s, %v", v, err)
	}
}
