package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given the Logger package", t, func() {
		Convey("New function", func() {
			Convey("When creating a logger with console output only", func() {
				var buf bytes.Buffer
				logger, err := New(Options{Level: "info", Output: &buf})

				Convey("It should write human readable lines", func() {
					So(err, ShouldBeNil)
					logger.Infof("Backup created: %s", "backup_2026-10-18_09-30-00.sql")
					logger.Sync()
					So(buf.String(), ShouldContainSubstring, "INFO")
					So(buf.String(), ShouldContainSubstring, "Backup created: backup_2026-10-18_09-30-00.sql")
				})
			})

			Convey("When creating a logger with a log file", func() {
				tempDir, err := os.MkdirTemp("", "logger_test")
				So(err, ShouldBeNil)
				defer os.RemoveAll(tempDir)

				logFile := filepath.Join(tempDir, "logs", "sqlkeep.log")
				logger, err := New(Options{Level: "debug", File: logFile, Output: &bytes.Buffer{}})

				Convey("It should create the directory and write JSON entries", func() {
					So(err, ShouldBeNil)
					logger.Debug("restore started")
					logger.Close()

					content, err := os.ReadFile(logFile)
					So(err, ShouldBeNil)

					var entry map[string]any
					So(json.Unmarshal(bytes.TrimSpace(content), &entry), ShouldBeNil)
					So(entry["msg"], ShouldEqual, "restore started")
					So(entry["level"], ShouldEqual, "DEBUG")
				})
			})

			Convey("When creating a logger with an invalid log level", func() {
				var buf bytes.Buffer
				logger, err := New(Options{Level: "invalid", Output: &buf})

				Convey("It should default to info", func() {
					So(err, ShouldBeNil)
					logger.Debug("hidden")
					logger.Info("shown")
					logger.Sync()
					So(buf.String(), ShouldNotContainSubstring, "hidden")
					So(buf.String(), ShouldContainSubstring, "shown")
				})
			})

			Convey("When creating a logger with an invalid log file path", func() {
				logger, err := New(Options{Level: "info", File: "/proc/sqlkeep/test.log"})

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to create log directory")
					So(logger, ShouldBeNil)
				})
			})
		})

		Convey("Job method", func() {
			var buf bytes.Buffer
			logger, err := New(Options{Level: "info", JSON: true, Output: &buf})
			So(err, ShouldBeNil)

			logger.Job("backup", "4b7e").Warnf("Discarded %d bytes", 12)
			logger.Sync()

			Convey("It should tag entries with the job", func() {
				var entry map[string]any
				So(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry), ShouldBeNil)
				So(entry["job"], ShouldEqual, "backup")
				So(entry["job_id"], ShouldEqual, "4b7e")
				So(entry["msg"], ShouldEqual, "Discarded 12 bytes")
			})
		})
	})
}
