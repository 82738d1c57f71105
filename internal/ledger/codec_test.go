package ledger

import (
	"testing"

	"github.com/claude/freelift/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

// TestSetsRoundTrip verifies encode followed by decode yields an equal list,
// including optional fields and labels.
func TestSetsRoundTrip(t *testing.T) {
	sets := []models.SetRecord{
		{ID: uuid.New(), SetNumber: 1, Reps: intp(10), Weight: floatp(42.5), Label: models.LabelWarmup, IsCompleted: true},
		{ID: uuid.New(), SetNumber: 2, Duration: floatp(60), Distance: floatp(400), Equipment: "rower"},
		{ID: uuid.New(), SetNumber: 3, Reps: intp(0), Weight: floatp(0), Label: models.LabelPRAttempt},
	}

	data, err := EncodeSets(sets)
	if err != nil {
		t.Fatalf("EncodeSets: %v", err)
	}
	if diff := cmp.Diff(sets, DecodeSets(data)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// TestSetsRoundTripEmpty verifies the empty list survives encoding.
func TestSetsRoundTripEmpty(t *testing.T) {
	data, err := EncodeSets(nil)
	if err != nil {
		t.Fatalf("EncodeSets: %v", err)
	}
	if diff := cmp.Diff([]models.SetRecord(nil), DecodeSets(data), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestDecodeSetsRenumbers verifies a stored blob with gaps or duplicate
// set numbers decodes with numbers 1..count in stored order.
func TestDecodeSetsRenumbers(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	data, err := EncodeSets([]models.SetRecord{
		{ID: a, SetNumber: 4},
		{ID: b, SetNumber: 4},
		{ID: c, SetNumber: 0},
	})
	if err != nil {
		t.Fatalf("EncodeSets: %v", err)
	}

	got := DecodeSets(data)
	want := []models.SetRecord{
		{ID: a, SetNumber: 1},
		{ID: b, SetNumber: 2},
		{ID: c, SetNumber: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestDecodeSetsCorrupt verifies corrupt or missing blobs degrade to an empty
// list rather than an error.
func TestDecodeSetsCorrupt(t *testing.T) {
	for _, in := range []string{"", "   ", "{", "null", `{"id":1}`, `[{"set_number":"x"}]`} {
		got := DecodeSets([]byte(in))
		if got == nil || len(got) != 0 {
			t.Errorf("DecodeSets(%q) = %v, want empty non-nil list", in, got)
		}
	}
	if Valid([]byte("{")) {
		t.Error("Valid({) = true, want false")
	}
	if !Valid(nil) {
		t.Error("Valid(nil) = false, want true")
	}
}

// TestInstructionsRoundTrip verifies instruction steps survive encoding and
// that corrupt blobs decode to an empty list.
func TestInstructionsRoundTrip(t *testing.T) {
	steps := []string{"Unrack the bar", "Lower to chest", "Press up"}
	data, err := EncodeInstructions(steps)
	if err != nil {
		t.Fatalf("EncodeInstructions: %v", err)
	}
	if diff := cmp.Diff(steps, DecodeInstructions(data)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got := DecodeInstructions([]byte(`"not a list"`)); len(got) != 0 {
		t.Errorf("corrupt decode = %v, want empty", got)
	}
}
