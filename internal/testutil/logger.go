package testutil

import (
	"io"

	"github.com/dtroode/gcal-connect/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(0, io.Discard)
}
