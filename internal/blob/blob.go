// Package blob stores arrival photos.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ErrNotFound is returned when no object exists at a path.
var ErrNotFound = errors.New("blob not found")

// Storage is the photo blob collaborator.
type Storage interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) error
	PublicURL(objectPath string) string
	Remove(ctx context.Context, objectPath string) error
	Open(ctx context.Context, objectPath string, w io.Writer) error
}

// Namer builds object paths. Paths of one arrival sort by upload time.
type Namer struct {
	node *snowflake.Node
}

// NewNamer creates a Namer for the given snowflake node id (0..1023).
func NewNamer(nodeID int64) (*Namer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &Namer{node: node}, nil
}

// ObjectPath returns "<project>/<arrival>/<item or general>/<id>_<file>".
func (n *Namer) ObjectPath(projectID, arrivalID, itemID, fileName string) string {
	scope := itemID
	if scope == "" {
		scope = "general"
	}
	return path.Join(projectID, arrivalID, scope, n.node.Generate().String()+"_"+sanitize(fileName))
}

func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "photo"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func publicURL(base, objectPath string) string {
	if base == "" {
		return "/" + objectPath
	}
	return strings.TrimRight(base, "/") + "/" + objectPath
}
