// Package cli translates command-line arguments into an app.Config,
// validating flag values and producing the tool's usage text.
package cli
