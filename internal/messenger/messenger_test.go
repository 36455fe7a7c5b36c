package messenger

import (
	"testing"
)

func TestCreatePairAndReceive(t *testing.T) {
	alice := New("alice", nil)
	bob := New("bob", nil)

	payload := map[string]any{"greeting": "hello"}
	msg := alice.CreatePair("bob", payload, ModeRegular)

	if msg.ID == "" || msg.PairID == "" {
		t.Fatal("expected non-empty pair id")
	}
	if msg.Source != "alice" || msg.Destination != "bob" {
		t.Errorf("endpoints wrong: %s -> %s", msg.Source, msg.Destination)
	}

	if dest, ok := alice.Counterpart(msg.PairID); !ok || dest != "bob" {
		t.Errorf("alice counterpart: expected bob, got %q (%v)", dest, ok)
	}

	bob.Receive(msg)
	if src, ok := bob.Counterpart(msg.PairID); !ok || src != "alice" {
		t.Errorf("bob counterpart: expected alice, got %q (%v)", src, ok)
	}

	as, bs := alice.Stats(), bob.Stats()
	if as.MessagesSent != 1 || as.ActivePairs != 1 {
		t.Errorf("alice stats: %+v", as)
	}
	if bs.MessagesReceived != 1 || bs.ActivePairs != 1 {
		t.Errorf("bob stats: %+v", bs)
	}
}

func TestSuperdenseHalvesResourceUnits(t *testing.T) {
	payload := map[string]any{"bits": "11"}

	regular := New("r", nil)
	regular.CreatePair("x", payload, ModeRegular)

	dense := New("d", nil)
	dense.CreatePair("x", payload, ModeSuperdense)

	rs, ds := regular.Stats(), dense.Stats()
	if rs.BitsDelivered != ds.BitsDelivered {
		t.Fatalf("modes must deliver the same bits: %d vs %d", rs.BitsDelivered, ds.BitsDelivered)
	}
	if rs.BitsDelivered == 0 {
		t.Fatal("expected non-zero bits for non-empty payload")
	}
	want := (rs.BitsDelivered + 1) / 2
	if ds.ResourceUnits != want {
		t.Errorf("superdense units: expected %d, got %d", want, ds.ResourceUnits)
	}
	if rs.ResourceUnits != rs.BitsDelivered {
		t.Errorf("regular units should equal bits: %d vs %d", rs.ResourceUnits, rs.BitsDelivered)
	}
}

func TestModeValidation(t *testing.T) {
	if !ModeRegular.Valid() || !ModeSuperdense.Valid() {
		t.Error("built-in modes must be valid")
	}
	if TransferMode("telepathy").Valid() {
		t.Error("unknown mode must be invalid")
	}
}
