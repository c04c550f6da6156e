//go:build gocv

package main

import "github.com/gogpu/texbridge/capture"

func openCamera(id int) (capture.Source, error) {
	src, err := capture.OpenCamera(id, 0, 0)
	if err != nil {
		return nil, err
	}
	return src, nil
}
