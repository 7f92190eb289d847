package shared

import "testing"

func TestFormatPosition(t *testing.T) {
	tc := []struct {
		name    string
		seconds int
		want    string
	}{
		{
			name:    "under a minute",
			seconds: 42,
			want:    "0:42",
		},
		{
			name:    "minutes and seconds",
			seconds: 754,
			want:    "12:34",
		},
		{
			name:    "over an hour",
			seconds: 3723,
			want:    "1:02:03",
		},
		{
			name:    "zero",
			seconds: 0,
			want:    "0:00",
		},
		{
			name:    "negative clamps to zero",
			seconds: -5,
			want:    "0:00",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPosition(tt.seconds)
			if got != tt.want {
				t.Errorf("FormatPosition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a == b {
		t.Errorf("expected unique IDs, got %s twice", a)
	}
}

func TestGenerateState(t *testing.T) {
	a := GenerateState()
	b := GenerateState()

	if len(a) != 32 {
		t.Errorf("expected 32 hex characters, got %d", len(a))
	}
	if a == b {
		t.Errorf("expected unique state values, got %s twice", a)
	}
}

func TestMarshalJSON(t *testing.T) {
	out, err := MarshalJSON(map[string]int{"count": 3})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	want := "{\n  \"count\": 3\n}"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}
