//go:build windows

package main

import (
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const processPerMonitorDPIAware = 2

// enableDPIAwareness makes screen coordinates match captured pixels on scaled displays.
func enableDPIAwareness() {
	setProcessDpiAwareness := windows.NewLazySystemDLL("Shcore.dll").NewProc("SetProcessDpiAwareness")
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			zap.L().Info("DPI: per-monitor awareness enabled")
		} else {
			zap.L().Warn("DPI: SetProcessDpiAwareness failed", zap.Uintptr("code", ret))
		}
		return
	}

	setProcessDPIAware := windows.NewLazySystemDLL("user32.dll").NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		zap.L().Warn("DPI: no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret != 0 {
		zap.L().Info("DPI: system awareness enabled (fallback)")
	} else {
		zap.L().Warn("DPI: SetProcessDPIAware failed")
	}
}

func logMonitorConfiguration() {
	getSystemMetrics := windows.NewLazySystemDLL("user32.dll").NewProc("GetSystemMetrics")
	metric := func(index int) int {
		ret, _, _ := getSystemMetrics.Call(uintptr(index))
		return int(int32(ret))
	}
	const (
		smCXScreen        = 0
		smCYScreen        = 1
		smXVirtualScreen  = 76
		smYVirtualScreen  = 77
		smCXVirtualScreen = 78
		smCYVirtualScreen = 79
		smCMonitors       = 80
	)
	zap.L().Info("monitor configuration",
		zap.Int("monitors", metric(smCMonitors)),
		zap.Int("virtual_x", metric(smXVirtualScreen)),
		zap.Int("virtual_y", metric(smYVirtualScreen)),
		zap.Int("virtual_w", metric(smCXVirtualScreen)),
		zap.Int("virtual_h", metric(smCYVirtualScreen)),
		zap.Int("primary_w", metric(smCXScreen)),
		zap.Int("primary_h", metric(smCYScreen)))
}
