package backpressure

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		bytes int
		want  Status
	}{
		{0, StatusOK},
		{512*1024 - 1, StatusOK},
		{512 * 1024, StatusWarning},
		{1024*1024 - 1, StatusWarning},
		{1024 * 1024, StatusCritical},
		{5 * 1024 * 1024, StatusCritical},
	}
	for _, c := range cases {
		if got := Classify(c.bytes); got != c.want {
			t.Errorf("Classify(%d) = %s, want %s", c.bytes, got, c.want)
		}
	}
}

func TestShouldDrop_OKNeverDrops(t *testing.T) {
	if ShouldDrop(StatusOK, "ice_candidate") {
		t.Error("expected no drop at StatusOK")
	}
}

func TestShouldDrop_CriticalKindsNeverDrop(t *testing.T) {
	for _, kind := range []string{"ack", "error", "resume_ok", "webrtc_offer", "webrtc_answer", "join_confirmed", "cohost_accept"} {
		if ShouldDrop(StatusCritical, kind) {
			t.Errorf("expected %s to never be dropped", kind)
		}
	}
}

func TestShouldDrop_DroppableKindsDropUnderPressure(t *testing.T) {
	for _, kind := range []string{"ice_candidate", "participant_count_update", "game_state"} {
		if ShouldDrop(StatusWarning, kind) {
			t.Errorf("expected %s not to be dropped under warning", kind)
		}
		if !ShouldDrop(StatusCritical, kind) {
			t.Errorf("expected %s to be droppable under critical", kind)
		}
	}
}

func TestMonitor_UpdateInvokesOnChange(t *testing.T) {
	var got Status
	m := NewMonitor(func(s Status) { got = s })
	result := m.Update(2 * 1024 * 1024)
	if result != StatusCritical || got != StatusCritical {
		t.Errorf("expected critical, got result=%s callback=%s", result, got)
	}
}
