//go:build linux

package capture

func currentPlatform() platformConfig { return linuxPlatform }
