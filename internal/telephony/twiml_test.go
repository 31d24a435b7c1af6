package telephony

import (
	"strings"
	"testing"
)

func TestRenderSayAndRedirect(t *testing.T) {
	var r Response
	r.Append(
		Say{Voice: "alice", Language: "en", Text: "Welcome to the call tool."},
		Redirect{URL: "/call/make_single?call_index=0"},
	)
	xml, err := r.Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(xml, "<?xml") {
		t.Fatalf("expected xml declaration: %s", xml)
	}
	for _, want := range []string{`<Say voice="alice" language="en">`, "<Redirect>"} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestRenderGatherNestsVerbs(t *testing.T) {
	g := Gather{Action: "/call/location_parse", Method: "POST", NumDigits: 5}
	g.Append(Say{Text: "Please enter your zip code."})
	var r Response
	r.Append(&g)

	xml, err := r.Render()
	if err != nil {
		t.Fatal(err)
	}
	gatherIdx := strings.Index(xml, "<Gather")
	sayIdx := strings.Index(xml, "<Say")
	closeIdx := strings.Index(xml, "</Gather>")
	if gatherIdx < 0 || sayIdx < gatherIdx || closeIdx < sayIdx {
		t.Fatalf("say must nest inside gather: %s", xml)
	}
	if !strings.Contains(xml, `numDigits="5"`) {
		t.Fatalf("expected numDigits attr: %s", xml)
	}
}

func TestRenderDialNumber(t *testing.T) {
	var r Response
	r.Append(Dial{
		Action:       "/call/complete?call_index=0",
		CallerID:     "+15105550100",
		HangupOnStar: true,
		Number:       &Number{Value: "+12025550100"},
	})
	xml, err := r.Render()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`hangupOnStar="true"`, "<Number>+12025550100</Number>"} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestRenderEmptyResponse(t *testing.T) {
	var r Response
	xml, err := r.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(xml, "<Response>") {
		t.Fatalf("expected response element: %s", xml)
	}
}
