//go:build opencv

package main

// Build with -tags opencv to enable camera.driver = "opencv".
import _ "github.com/teslashibe/go-caption/pkg/camera/opencv"
