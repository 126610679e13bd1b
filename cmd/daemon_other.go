//go:build !windows

package cmd

import (
	"errors"

	"github.com/warpdl/asyncload/internal/daemon"
	"github.com/warpdl/asyncload/pkg/logger"
)

func serviceLogger(l logger.Logger) (logger.Logger, bool) {
	return l, false
}

func runService(*daemon.Runner, logger.Logger) error {
	return errors.New("service mode is only available on Windows")
}
