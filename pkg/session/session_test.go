package session

import "testing"

func TestClientID(t *testing.T) {
	s := New()
	if s.ClientID() == "" {
		t.Fatal("expected non-empty client id")
	}
	if s.ClientID() != s.ClientID() {
		t.Error("expected client id to be stable")
	}
	if New().ClientID() == s.ClientID() {
		t.Error("expected distinct sessions to get distinct ids")
	}
}

func TestSetAddonActiveReportsTransitions(t *testing.T) {
	s := New()

	if s.AddonActive() {
		t.Fatal("expected addon to start inactive")
	}
	if !s.SetAddonActive(true) {
		t.Error("expected inactive->active to report a change")
	}
	if s.SetAddonActive(true) {
		t.Error("expected active->active to report no change")
	}
	if !s.AddonActive() {
		t.Error("expected addon active")
	}
	if !s.SetAddonActive(false) {
		t.Error("expected active->inactive to report a change")
	}
	if s.SetAddonActive(false) {
		t.Error("expected inactive->inactive to report no change")
	}
}

func TestControlStateHelpers(t *testing.T) {
	if st := Unavailable("no endpoint"); st.Available || st.Active || st.Reason != "no endpoint" {
		t.Errorf("unexpected unavailable state: %+v", st)
	}
	if st := Ready(); !st.Available || st.Active {
		t.Errorf("unexpected ready state: %+v", st)
	}
	if st := Engaged(); !st.Available || !st.Active {
		t.Errorf("unexpected engaged state: %+v", st)
	}
}
