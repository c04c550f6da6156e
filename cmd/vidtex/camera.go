//go:build !gocv

package main

import (
	"errors"

	"github.com/gogpu/texbridge/capture"
)

func openCamera(int) (capture.Source, error) {
	return nil, errors.New("-camera needs a gocv build (go build -tags gocv); use -input /dev/video0 -format v4l2 instead")
}
