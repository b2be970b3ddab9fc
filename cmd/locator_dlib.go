//go:build dlib

package cmd

import (
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/facematch/dlib"
)

func init() {
	dlibLocator = func(modelsDir string) (facematch.Locator, func(), error) {
		l, err := dlib.NewLocator(modelsDir)
		if err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil
	}
}
