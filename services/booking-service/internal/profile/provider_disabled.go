//go:build !protogen

package profile

// NewRemoteProvider is a stand-in for builds without generated proto code.
// It reports no remote directory so callers use the local provider.
func NewRemoteProvider(_ string) (Provider, error) {
	return nil, nil
}
