// Package device binds the built-in device-automation tool set to a Device
// backend. The backend (an accessibility service on a real handset, or Sim
// in tests) is an external collaborator reached only through the Device
// interface.
package device

import "context"

// Device is the host surface tools execute against.
type Device interface {
	// Tap presses the screen at the given coordinates.
	Tap(ctx context.Context, x, y int) error

	// Swipe drags from (x1,y1) to (x2,y2) over durationMs milliseconds.
	Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error

	// TypeText enters text into the focused input field.
	TypeText(ctx context.Context, text string) error

	// PressKey presses a named hardware or navigation key (e.g. "back",
	// "home", "enter").
	PressKey(ctx context.Context, key string) error

	// ScreenContent returns a textual description of the visible UI
	// hierarchy.
	ScreenContent(ctx context.Context) (string, error)

	// OpenApp launches an application by package name.
	OpenApp(ctx context.Context, pkg string) error

	// ListApps returns the launchable package names on the device.
	ListApps(ctx context.Context) ([]string, error)
}
