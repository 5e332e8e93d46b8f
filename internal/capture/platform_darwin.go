//go:build darwin

package capture

func currentPlatform() platformConfig { return darwinPlatform }
