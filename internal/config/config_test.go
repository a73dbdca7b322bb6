package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const minimalYAML = `
database:
  username: app
  password: secret
  database: shop
backup:
  schedule: "0 0 2 * * *"
  upload_targets:
    - type: s3
      enabled: true
      bucket: shop-backups
      region: eu-west-1
    - type: gdrive
      enabled: false
`

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a minimal config file", t, func() {
		path := writeConfig(t, minimalYAML)

		Convey("When it is loaded", func() {
			cfg, err := Load(path)

			Convey("It should fill in the defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.App.Name, ShouldEqual, "sqlkeep")
				So(cfg.Database.Host, ShouldEqual, "127.0.0.1")
				So(cfg.Database.Port, ShouldEqual, 3306)
				So(cfg.Paths.BackupDir, ShouldEqual, "backups")
				So(cfg.Paths.UploadsDir, ShouldEqual, "api/uploads")
				So(cfg.Restore.MaxErrorDetails, ShouldEqual, 1000)
				So(cfg.Import.MaxPayloadBytes, ShouldEqual, 5_000_000)
				So(cfg.Backup.RetentionDays, ShouldEqual, 7)
				So(cfg.HTTP.Addr, ShouldEqual, ":8080")
			})

			Convey("It should only return enabled targets", func() {
				targets := cfg.GetEnabledUploadTargets()
				So(len(targets), ShouldEqual, 1)
				So(targets[0].Type, ShouldEqual, "s3")
				So(targets[0].Bucket, ShouldEqual, "shop-backups")
			})
		})

		Convey("When the environment overrides a key", func() {
			t.Setenv("SQLKEEP_DATABASE_HOST", "db.internal")
			cfg, err := Load(path)

			So(err, ShouldBeNil)
			So(cfg.Database.Host, ShouldEqual, "db.internal")
		})
	})

	Convey("Given a missing config file", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "failed to read config")
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a valid config", t, func() {
		valid := func() *Config {
			return &Config{
				Database: DatabaseConfig{Host: "localhost", Database: "shop"},
				Paths:    PathsConfig{ProjectRoot: ".", BackupDir: "backups", UploadsDir: "api/uploads"},
				Import:   ImportConfig{MaxPayloadBytes: 1024},
			}
		}
		So(valid().Validate(), ShouldBeNil)

		Convey("A missing database name should be rejected", func() {
			cfg := valid()
			cfg.Database.Database = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("A socket should stand in for the host", func() {
			cfg := valid()
			cfg.Database.Host = ""
			cfg.Database.Socket = "/run/mysqld/mysqld.sock"
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("A five field schedule should be rejected", func() {
			cfg := valid()
			cfg.Backup.Schedule = "0 2 * * *"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("A descriptor schedule should be accepted", func() {
			cfg := valid()
			cfg.Backup.Schedule = "@daily"
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("Incomplete upload targets should be rejected", func() {
			for _, target := range []UploadTarget{
				{Type: "s3", Enabled: true},
				{Type: "gdrive", Enabled: true},
				{Type: "telegram", Enabled: true, BotToken: "x"},
				{Type: "local", Enabled: true},
				{Type: "ftp", Enabled: true},
			} {
				cfg := valid()
				cfg.Backup.UploadTargets = []UploadTarget{target}
				So(cfg.Validate(), ShouldNotBeNil)
			}
		})

		Convey("A blank uploads directory should be rejected", func() {
			cfg := valid()
			cfg.Paths.UploadsDir = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("A local mirror onto the backup directory should be rejected", func() {
			for _, path := range []string{"backups", "./backups/", filepath.Join(mustAbs(t, "."), "backups")} {
				cfg := valid()
				cfg.Backup.UploadTargets = []UploadTarget{{Type: "local", Enabled: true, Path: path}}
				err := cfg.Validate()
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "must differ from paths.backup_dir")
			}

			cfg := valid()
			cfg.Backup.UploadTargets = []UploadTarget{{Type: "local", Enabled: true, Path: "mirror"}}
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("Disabled targets should not be checked", func() {
			cfg := valid()
			cfg.Backup.UploadTargets = []UploadTarget{{Type: "ftp"}}
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func mustAbs(t *testing.T, p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}
