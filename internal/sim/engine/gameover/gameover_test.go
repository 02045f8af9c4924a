package gameover

import (
	"testing"

	"kienquoc.game/internal/sim/engine/model"
)

func TestCheck(t *testing.T) {
	if s := Check(model.UniformIndices(10), 0); s.GameOver {
		t.Fatalf("healthy indices reported game over")
	}
	ix := model.UniformIndices(10)
	ix[model.Environment] = 0
	ix[model.Science] = 0
	s := Check(ix, 0)
	if !s.GameOver || s.ZeroIndex != model.Environment {
		t.Fatalf("got %+v want environment", s)
	}
}

func TestIsComplete(t *testing.T) {
	if IsComplete(7, 8) || !IsComplete(8, 8) || !IsComplete(9, 8) {
		t.Fatalf("IsComplete boundary wrong")
	}
}

func TestFinalRanking_StableTies(t *testing.T) {
	got := FinalRanking([]Standing{
		{TeamID: "A", Points: 10},
		{TeamID: "B", Points: 20.5},
		{TeamID: "C", Points: 10},
		{TeamID: "D", Points: 30},
	})
	order := []string{"D", "B", "A", "C"}
	for i, id := range order {
		if got[i].TeamID != id || got[i].Rank != i+1 {
			t.Fatalf("rank %d: got %+v want %s", i+1, got[i], id)
		}
	}
}

func TestBuild_Reason(t *testing.T) {
	ix := model.UniformIndices(4)
	st := Build(ix, 0, 8, []Standing{{TeamID: "A", Points: 1}})
	if st.Reason != model.ReasonCompleted || st.ZeroIndex != "" || st.TurnsPlayed != 8 {
		t.Fatalf("completed game: %+v", st)
	}
	ix[model.Culture] = 0
	st = Build(ix, 0, 5, nil)
	if st.Reason != model.ReasonIndexZero || st.ZeroIndex != "culture" {
		t.Fatalf("index zero game: %+v", st)
	}
}
