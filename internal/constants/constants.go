// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// DefaultRunListLimit caps run listings when the caller gives no limit.
const DefaultRunListLimit = 50
