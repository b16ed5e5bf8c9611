package model

import (
	"errors"
	"strings"
	"testing"
)

// TestRecordError tests formatting and unwrapping of row errors.
func TestRecordError(t *testing.T) {
	t.Parallel()

	t.Run("message names line and field", func(t *testing.T) {
		t.Parallel()
		err := &RecordError{Line: 7, Field: "subject_data", Err: ErrMalformedRecord}
		if got := err.Error(); got != "line 7: subject_data: malformed record" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("errors.Is matches the sentinel", func(t *testing.T) {
		t.Parallel()
		err := Malformed("workflow_id", "%q is not numeric", "x")
		if !errors.Is(err, ErrMalformedRecord) {
			t.Error("expected ErrMalformedRecord")
		}
		if !strings.Contains(err.Error(), "workflow_id") {
			t.Errorf("expected field in message, got %q", err.Error())
		}
	})

	t.Run("AtLine fills missing line", func(t *testing.T) {
		t.Parallel()
		err := AtLine(Malformed("annotations", "bad"), 3)
		var re *RecordError
		if !errors.As(err, &re) {
			t.Fatal("expected RecordError")
		}
		if re.Line != 3 || re.Field != "annotations" {
			t.Errorf("unexpected %+v", re)
		}
	})

	t.Run("AtLine wraps foreign errors", func(t *testing.T) {
		t.Parallel()
		err := AtLine(ErrInvalidTaskValue, 9)
		if !errors.Is(err, ErrInvalidTaskValue) {
			t.Error("expected ErrInvalidTaskValue")
		}
		if !strings.HasPrefix(err.Error(), "line 9:") {
			t.Errorf("got %q", err.Error())
		}
	})

	t.Run("AtLine keeps nil", func(t *testing.T) {
		t.Parallel()
		if AtLine(nil, 1) != nil {
			t.Error("expected nil")
		}
	})
}

// TestUnusualString tests the String method of Unusual.
func TestUnusualString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		value    Unusual
		expected string
		known    bool
	}{
		{UnusualUnknown, "undetermined", false},
		{UnusualYes, "unusual", true},
		{UnusualNo, "not-unusual", true},
		{Unusual(42), "undetermined", false},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.value.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.value.String(), tc.expected)
			}
			if tc.value.Known() != tc.known {
				t.Errorf("Known() = %v, expected %v", tc.value.Known(), tc.known)
			}
		})
	}
}
