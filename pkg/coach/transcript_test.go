package coach

import "testing"

func TestTranscript(t *testing.T) {
	var tr Transcript

	tr.AddUserDelta("count ")
	tr.AddUserDelta("my reps")
	tr.AddModelDelta("that was ")
	tr.AddModelDelta("eight")
	if p := tr.Partial(); p.UserInput != "count my reps" || p.ModelOutput != "that was eight" {
		t.Fatalf("partial = %+v", p)
	}

	tr.CompleteTurn()
	turns := tr.Turns()
	if len(turns) != 1 {
		t.Fatalf("turns = %d; want 1", len(turns))
	}
	if p := tr.Partial(); p.UserInput != "" || p.ModelOutput != "" {
		t.Errorf("partial not cleared: %+v", p)
	}

	// Completing an empty exchange records nothing.
	tr.CompleteTurn()
	if got := len(tr.Turns()); got != 1 {
		t.Errorf("turns after empty complete = %d; want 1", got)
	}

	// One-sided turns are kept.
	tr.AddModelDelta("keep going")
	tr.CompleteTurn()
	if got := len(tr.Turns()); got != 2 {
		t.Errorf("turns = %d; want 2", got)
	}

	tr.Reset()
	if got := len(tr.Turns()); got != 0 {
		t.Errorf("turns after reset = %d; want 0", got)
	}
}

func TestTranscript_TurnsCopy(t *testing.T) {
	var tr Transcript
	tr.AddUserDelta("a")
	tr.CompleteTurn()

	turns := tr.Turns()
	turns[0].UserInput = "mutated"
	if tr.Turns()[0].UserInput != "a" {
		t.Error("Turns exposed internal slice")
	}
}
