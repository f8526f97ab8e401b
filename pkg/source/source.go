// Package source defines the data source contract used by snapshot nodes and its
// implementations: the game's HTTP web server and a throttled wrapper shared by a tree.
package source

import (
	"context"
	"errors"

	sdkerrors "github.com/wehubfusion/nucleares/pkg/errors"
)

// DataSource reads and writes named scalar variables of the running game.
type DataSource interface {
	// Read returns the current value of the variable.
	Read(ctx context.Context, name string) (string, error)

	// Write requests a new value for a writable variable.
	Write(ctx context.Context, name, value string) error
}

// RodsOrderedPosition is the variable that commands the position of every control rod.
const RodsOrderedPosition = "RODS_ALL_POS_ORDERED"

var writable = map[string]struct{}{
	RodsOrderedPosition: {},
}

// Writable reports whether the game accepts writes to name.
func Writable(name string) bool {
	_, ok := writable[name]
	return ok
}

// classify maps a raw failure onto the SDK taxonomy. Errors that are already typed
// pass through unchanged.
func classify(ctx context.Context, variable string, err error) error {
	if err == nil {
		return nil
	}
	var typed *sdkerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	if ctx.Err() != nil {
		return sdkerrors.NewCancelledError(variable, err)
	}
	return sdkerrors.NewTransportError(variable, err)
}
