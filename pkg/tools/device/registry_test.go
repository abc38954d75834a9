package device

import (
	"context"
	"strings"
	"testing"
)

func TestRegistryCatalog(t *testing.T) {
	r, err := NewRegistry(NewSim())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		ToolNameTap, ToolNameSwipe, ToolNameTypeText, ToolNamePressKey,
		ToolNameScreenContent, ToolNameOpenApp, ToolNameListApps,
	}
	defs := r.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(defs))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("position %d: got %q, want %q", i, d.Name, want[i])
		}
	}
}

func TestTapDispatch(t *testing.T) {
	sim := NewSim()
	r, err := NewRegistry(sim)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Execute(context.Background(), ToolNameTap, `{"x":120,"y":640}`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "tapped (120, 640)" {
		t.Errorf("result = %q", got)
	}
	actions := sim.Actions()
	if len(actions) != 1 || actions[0] != "tap 120 640" {
		t.Errorf("actions = %v", actions)
	}
}

func TestSwipeDefaultDuration(t *testing.T) {
	sim := NewSim()
	r, err := NewRegistry(sim)
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Execute(context.Background(), ToolNameSwipe, `{"start_x":0,"start_y":500,"end_x":0,"end_y":100}`)
	if err != nil {
		t.Fatal(err)
	}
	actions := sim.Actions()
	if len(actions) != 1 || actions[0] != "swipe 0 500 0 100 300" {
		t.Errorf("default duration not applied: %v", actions)
	}
}

func TestScreenAndApps(t *testing.T) {
	sim := NewSim()
	sim.Screen = "Settings > Network"
	sim.Apps = []string{"com.example.one", "com.example.two"}
	r, err := NewRegistry(sim)
	if err != nil {
		t.Fatal(err)
	}

	screen, err := r.Execute(context.Background(), ToolNameScreenContent, "")
	if err != nil {
		t.Fatal(err)
	}
	if screen != "Settings > Network" {
		t.Errorf("screen = %q", screen)
	}

	apps, err := r.Execute(context.Background(), ToolNameListApps, "{}")
	if err != nil {
		t.Fatal(err)
	}
	if apps != strings.Join(sim.Apps, "\n") {
		t.Errorf("apps = %q", apps)
	}
}

func TestOpenAppAndKeys(t *testing.T) {
	sim := NewSim()
	r, err := NewRegistry(sim)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := r.Execute(ctx, ToolNameOpenApp, `{"package_name":"com.android.chrome"}`); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Execute(ctx, ToolNamePressKey, `{"key":"back"}`); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Execute(ctx, ToolNameTypeText, `{"text":"hello"}`); err != nil {
		t.Fatal(err)
	}

	want := []string{"open com.android.chrome", "press back", "type hello"}
	actions := sim.Actions()
	if len(actions) != len(want) {
		t.Fatalf("actions = %v", actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("action %d = %q, want %q", i, actions[i], want[i])
		}
	}
}
