package logger

import (
	"io"
	"time"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// formatWriter renders entries for out. Colors only apply to the console
// format and never to files.
func formatWriter(format LogFormat, out io.Writer, color bool) io.Writer {
	switch format {
	case FormatJSON:
		return out
	case FormatText:
		color = false
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    !color,
	}
}

// rotatingFile opens the log file through lumberjack, creating its
// directory first.
func rotatingFile(out FileOutput) (io.Writer, error) {
	if err := common.EnsureParentDir(out.Path); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   out.Path,
		MaxSize:    out.MaxSizeMB,
		MaxBackups: out.MaxBackups,
		MaxAge:     out.MaxAgeDays,
		Compress:   out.Compress,
		LocalTime:  true,
	}, nil
}
