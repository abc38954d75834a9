package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/nstogner/pocketagent/pkg/tools"
)

// Tool names exposed to the model.
const (
	ToolNameTap           = "tap"
	ToolNameSwipe         = "swipe"
	ToolNameTypeText      = "type_text"
	ToolNamePressKey      = "press_key"
	ToolNameScreenContent = "get_screen_content"
	ToolNameOpenApp       = "open_app"
	ToolNameListApps      = "list_apps"
)

const defaultSwipeDurationMs = 300

// NewRegistry builds the tool catalog for one device.
func NewRegistry(d Device) (*tools.Registry, error) {
	r := tools.NewRegistry()
	for _, t := range []tools.Tool{
		{
			Name:        ToolNameTap,
			Description: "Tap the screen at the given coordinates.",
			Parameters: []tools.Parameter{
				{Name: "x", Type: tools.TypeInteger, Description: "Horizontal position in pixels.", Required: true},
				{Name: "y", Type: tools.TypeInteger, Description: "Vertical position in pixels.", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				x, y := intArg(args, "x"), intArg(args, "y")
				if err := d.Tap(ctx, x, y); err != nil {
					return "", err
				}
				return fmt.Sprintf("tapped (%d, %d)", x, y), nil
			},
		},
		{
			Name:        ToolNameSwipe,
			Description: "Swipe from one point to another.",
			Parameters: []tools.Parameter{
				{Name: "start_x", Type: tools.TypeInteger, Description: "Start horizontal position.", Required: true},
				{Name: "start_y", Type: tools.TypeInteger, Description: "Start vertical position.", Required: true},
				{Name: "end_x", Type: tools.TypeInteger, Description: "End horizontal position.", Required: true},
				{Name: "end_y", Type: tools.TypeInteger, Description: "End vertical position.", Required: true},
				{Name: "duration", Type: tools.TypeInteger, Description: "Swipe duration in milliseconds.", Required: false, Default: defaultSwipeDurationMs},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				x1, y1 := intArg(args, "start_x"), intArg(args, "start_y")
				x2, y2 := intArg(args, "end_x"), intArg(args, "end_y")
				dur := intArg(args, "duration")
				if err := d.Swipe(ctx, x1, y1, x2, y2, dur); err != nil {
					return "", err
				}
				return fmt.Sprintf("swiped (%d, %d) -> (%d, %d) in %dms", x1, y1, x2, y2, dur), nil
			},
		},
		{
			Name:        ToolNameTypeText,
			Description: "Type text into the focused input field.",
			Parameters: []tools.Parameter{
				{Name: "text", Type: tools.TypeString, Description: "The text to enter.", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				text, _ := args["text"].(string)
				if err := d.TypeText(ctx, text); err != nil {
					return "", err
				}
				return "text entered", nil
			},
		},
		{
			Name:        ToolNamePressKey,
			Description: "Press a navigation or hardware key such as back, home or enter.",
			Parameters: []tools.Parameter{
				{Name: "key", Type: tools.TypeString, Description: "Key name.", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				key, _ := args["key"].(string)
				if err := d.PressKey(ctx, key); err != nil {
					return "", err
				}
				return fmt.Sprintf("pressed %s", key), nil
			},
		},
		{
			Name:        ToolNameScreenContent,
			Description: "Read the current screen's UI hierarchy as text.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return d.ScreenContent(ctx)
			},
		},
		{
			Name:        ToolNameOpenApp,
			Description: "Launch an application by package name.",
			Parameters: []tools.Parameter{
				{Name: "package_name", Type: tools.TypeString, Description: "Package name of the app to launch.", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				pkg, _ := args["package_name"].(string)
				if err := d.OpenApp(ctx, pkg); err != nil {
					return "", err
				}
				return fmt.Sprintf("opened %s", pkg), nil
			},
		},
		{
			Name:        ToolNameListApps,
			Description: "List launchable apps installed on the device.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				apps, err := d.ListApps(ctx)
				if err != nil {
					return "", err
				}
				return strings.Join(apps, "\n"), nil
			},
		},
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// intArg reads a numeric argument. JSON numbers decode as float64; defaults
// applied by the registry may be int.
func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
