package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/sqlkeep/internal/config"
)

const listBucketXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>shop-backups</Name>
  <Prefix>mysql/</Prefix>
  <KeyCount>4</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>mysql/backup_2026-10-01_03-00-00.sql.gz</Key><LastModified>2026-10-18T03:00:00.000Z</LastModified><Size>3</Size></Contents>
  <Contents><Key>mysql/backup_2026-10-17_03-00-00.sql.gz</Key><LastModified>2026-10-17T03:00:00.000Z</LastModified><Size>3</Size></Contents>
  <Contents><Key>mysql/notes.txt</Key><LastModified>2026-01-01T00:00:00.000Z</LastModified><Size>3</Size></Contents>
  <Contents><Key>mysql/archive/backup_2020-01-01_00-00-00.sql.gz</Key><LastModified>2020-01-01T00:00:00.000Z</LastModified><Size>3</Size></Contents>
</ListBucketResult>`

// fakeS3 serves ListObjectsV2 and DeleteObject for a single bucket.
func fakeS3() (*httptest.Server, func() []string) {
	var (
		mu      sync.Mutex
		deleted []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, listBucketXML)
		case r.Method == http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/shop-backups/"))
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))

	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), deleted...)
	}
}

func TestS3Storage(t *testing.T) {
	Convey("Given an S3 compatible bucket", t, func() {
		srv, deleted := fakeS3()
		defer srv.Close()

		ctx := context.Background()
		s3, err := NewS3(ctx, &config.UploadTarget{
			Region:    "us-east-1",
			Bucket:    "shop-backups",
			Prefix:    "/mysql/",
			AccessKey: "test",
			SecretKey: "test",
			Endpoint:  srv.URL,
		})
		So(err, ShouldBeNil)

		Convey("List should return names directly under the prefix", func() {
			files, err := s3.List(ctx)
			So(err, ShouldBeNil)
			So(files, ShouldResemble, []string{
				"backup_2026-10-01_03-00-00.sql.gz",
				"backup_2026-10-17_03-00-00.sql.gz",
				"notes.txt",
			})
		})

		Convey("GetOldFiles should prefer the timestamp in the name", func() {
			cutoff := time.Date(2026, 10, 11, 0, 0, 0, 0, time.Local)
			files, err := s3.GetOldFiles(ctx, cutoff)
			So(err, ShouldBeNil)
			So(files, ShouldResemble, []string{
				"backup_2026-10-01_03-00-00.sql.gz",
				"notes.txt",
			})
		})

		Convey("Delete should remove the prefixed key", func() {
			So(s3.Delete(ctx, "backup_2026-10-01_03-00-00.sql.gz"), ShouldBeNil)
			So(deleted(), ShouldResemble, []string{"mysql/backup_2026-10-01_03-00-00.sql.gz"})
		})
	})
}
