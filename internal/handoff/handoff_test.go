package handoff

import (
	"os"
	"reflect"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	cases := [][]int{
		nil,
		{3},
		{3, 4, 5},
		{6, 7, 8, 9, 10},
	}
	for _, fds := range cases {
		encoded := Encode(fds)
		got, err := Parse(encoded)
		if err != nil {
			t.Fatalf("Parse(%q): %v", encoded, err)
		}
		want := fds
		if want == nil {
			want = []int{}
		}
		if got == nil {
			got = []int{}
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch: encoded %q, got %v, want %v", encoded, got, want)
		}
	}
}

func TestEncodeTrailingSemicolon(t *testing.T) {
	if got := Encode([]int{3, 4}); got != "3;4;" {
		t.Fatalf("Encode = %q, want %q", got, "3;4;")
	}
}

func TestParseRejectsInvalidSegment(t *testing.T) {
	if _, err := Parse("3;xyz;5;"); err == nil {
		t.Fatalf("expected error for invalid socket number")
	}
}

func TestParseEmptyStringYieldsNil(t *testing.T) {
	fds, err := Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fds != nil {
		t.Fatalf("expected nil, got %v", fds)
	}
}

func TestFromEnvironAbsentIsNotPresent(t *testing.T) {
	prior, hadPrior := os.LookupEnv(EnvVar)
	os.Unsetenv(EnvVar)
	t.Cleanup(func() {
		if hadPrior {
			os.Setenv(EnvVar, prior)
		}
	})
	fds, present, err := FromEnviron()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if present {
		t.Fatalf("expected not present")
	}
	if fds != nil {
		t.Fatalf("expected nil fds, got %v", fds)
	}
}

func TestFromEnvironParsesPresentValue(t *testing.T) {
	t.Setenv(EnvVar, "3;4;5;")
	fds, present, err := FromEnviron()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !present {
		t.Fatalf("expected present")
	}
	if !reflect.DeepEqual(fds, []int{3, 4, 5}) {
		t.Fatalf("got %v", fds)
	}
}

func TestEnvEntryFormat(t *testing.T) {
	if got := EnvEntry([]int{3, 4}); got != "NGINX=3;4;" {
		t.Fatalf("EnvEntry = %q", got)
	}
}
