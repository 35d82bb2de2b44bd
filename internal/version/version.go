// ABOUTME: Version and product identification
// ABOUTME: Reported in client/hello device info and the TUI header
package version

const (
	Product      = "JamSync Player"
	Manufacturer = "JamSync"
	Version      = "0.3.0"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
