// Package viewer talks to the 3D model viewer that shows the project's
// assemblies. The service never renders anything itself: it reads the current
// selection and paints objects by GUID.
package viewer

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Color is an RGB triple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// RGB builds a Color from a config triple.
func RGB(c [3]uint8) Color {
	return Color{R: c[0], G: c[1], B: c[2]}
}

// Selection is the set of runtime objects picked in one loaded model.
type Selection struct {
	ModelID    string  `json:"model_id"`
	RuntimeIDs []int64 `json:"runtime_ids"`
}

// ObjectProperties describes one model object.
type ObjectProperties struct {
	GUID         string  `json:"guid"`
	Name         string  `json:"name"`
	AssemblyMark string  `json:"assembly_mark"`
	ProductName  string  `json:"product_name"`
	Weight       float64 `json:"weight"`
}

// Client is the subset of the viewer API the service uses.
type Client interface {
	GetSelection(ctx context.Context) ([]Selection, error)
	ConvertToObjectIDs(ctx context.Context, modelID string, runtimeIDs []int64) ([]string, error)
	GetObjectProperties(ctx context.Context, modelID string, runtimeIDs []int64) ([]ObjectProperties, error)
	SetSelection(ctx context.Context, guids []string) error
	SetObjectState(ctx context.Context, guids []string, color Color) error
}

// SelectionKey is a canonical form of a selection, equal for two selections
// that pick the same objects in any order.
func SelectionKey(sel []Selection) string {
	parts := make([]string, 0, len(sel))
	for _, s := range sel {
		ids := append([]int64(nil), s.RuntimeIDs...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		var b strings.Builder
		b.WriteString(s.ModelID)
		b.WriteByte(':')
		for i, id := range ids {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%d", id)
		}
		parts = append(parts, b.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// Nop is a Client for deployments without a viewer. Reads return nothing and
// writes succeed.
type Nop struct{}

func (Nop) GetSelection(context.Context) ([]Selection, error) { return nil, nil }

func (Nop) ConvertToObjectIDs(context.Context, string, []int64) ([]string, error) { return nil, nil }

func (Nop) GetObjectProperties(context.Context, string, []int64) ([]ObjectProperties, error) {
	return nil, nil
}

func (Nop) SetSelection(context.Context, []string) error { return nil }

func (Nop) SetObjectState(context.Context, []string, Color) error { return nil }
