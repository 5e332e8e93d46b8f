//go:build !linux && !darwin

package capture

func currentPlatform() platformConfig { return windowsPlatform }
