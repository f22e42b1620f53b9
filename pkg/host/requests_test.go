package host

import "testing"

func TestRequestsInFlightGuard(t *testing.T) {
	r := NewRequests()

	if !r.Add("tts-poll") {
		t.Fatal("expected first Add to succeed")
	}
	if r.Add("tts-poll") {
		t.Error("expected duplicate Add to fail")
	}
	if !r.Add("sound-poll") {
		t.Error("expected a different tag to be independent")
	}
	if !r.Active("tts-poll") {
		t.Error("expected tag to be active")
	}

	r.Remove("tts-poll")
	if r.Active("tts-poll") {
		t.Error("expected tag to be inactive after Remove")
	}
	if !r.Add("tts-poll") {
		t.Error("expected Add to succeed after Remove")
	}
}
