package sqldump

import (
	"errors"
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func collect(input string) ([]string, *Reassembler) {
	r := NewReassembler(NewLineReader(strings.NewReader(input)))
	var stmts []string
	for r.Next() {
		stmts = append(stmts, r.Statement())
	}
	return stmts, r
}

type failingSource struct {
	lines []string
	err   error
}

func (f *failingSource) ReadLine() (string, error) {
	if len(f.lines) == 0 {
		return "", f.err
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func TestReassembler(t *testing.T) {
	Convey("Given a Reassembler", t, func() {
		Convey("When statements span several lines", func() {
			stmts, r := collect("CREATE TABLE `a` (\n  `id` int\n);\nINSERT INTO `a` VALUES\n(1),\n(2);\n")

			Convey("It should yield one statement per terminator", func() {
				So(r.Err(), ShouldBeNil)
				So(stmts, ShouldResemble, []string{
					"CREATE TABLE `a` (\n  `id` int\n)",
					"INSERT INTO `a` VALUES\n(1),\n(2)",
				})
			})
		})

		Convey("When comments and blank lines are interleaved", func() {
			plain, _ := collect("DROP TABLE a;\nCREATE TABLE a (id int);\n")
			noisy, _ := collect("-- header\n\n/* hint */\nDROP TABLE a;\n   \n  -- between\nCREATE TABLE a (\n-- inside\nid int);\n\n")

			Convey("It should yield the same statements", func() {
				So(noisy, ShouldResemble, []string{"DROP TABLE a", "CREATE TABLE a (\nid int)"})
				So(len(plain), ShouldEqual, 2)
				So(plain[0], ShouldEqual, noisy[0])
			})
		})

		Convey("When statements carry surrounding whitespace", func() {
			stmts, _ := collect("   UPDATE t SET a = 1   ;   \r\n\tSELECT 1 ;\n")

			Convey("It should strip whitespace and the trailing semicolon", func() {
				So(stmts, ShouldResemble, []string{"UPDATE t SET a = 1", "SELECT 1"})
				for _, s := range stmts {
					So(strings.HasSuffix(s, ";"), ShouldBeFalse)
					So(s, ShouldEqual, strings.TrimSpace(s))
				}
			})
		})

		Convey("When the stream ends without a terminator", func() {
			terminated, _ := collect("SELECT 1;\nSELECT 2;\n")
			unterminated, r := collect("SELECT 1;\nSELECT 2\n")

			Convey("It should discard the trailing fragment without error", func() {
				So(len(unterminated), ShouldEqual, len(terminated)-1)
				So(r.Err(), ShouldBeNil)
				So(r.Discarded(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When a line holds only a semicolon", func() {
			stmts, _ := collect("SELECT 1;\n;\nSELECT 2;")

			Convey("It should not yield an empty statement", func() {
				So(stmts, ShouldResemble, []string{"SELECT 1", "SELECT 2"})
			})
		})

		Convey("When the final line has no newline", func() {
			stmts, r := collect("SELECT 1;\nSELECT 2;")

			Convey("It should still yield it", func() {
				So(stmts, ShouldResemble, []string{"SELECT 1", "SELECT 2"})
				So(r.Discarded(), ShouldEqual, 0)
			})
		})

		Convey("When the source fails", func() {
			boom := errors.New("disk error")
			r := NewReassembler(&failingSource{lines: []string{"SELECT 1;\n", "SELECT"}, err: boom})
			var stmts []string
			for r.Next() {
				stmts = append(stmts, r.Statement())
			}

			Convey("It should stop and report the error", func() {
				So(stmts, ShouldResemble, []string{"SELECT 1"})
				So(r.Err(), ShouldEqual, boom)
				So(r.Next(), ShouldBeFalse)
			})
		})

		Convey("When the source ends cleanly", func() {
			r := NewReassembler(&failingSource{err: io.EOF})

			Convey("It should report no error", func() {
				So(r.Next(), ShouldBeFalse)
				So(r.Err(), ShouldBeNil)
			})
		})
	})
}

func TestSplitStatements(t *testing.T) {
	Convey("Given an import payload", t, func() {
		payload := "INSERT INTO a VALUES (1);\n\n-- note\n;  UPDATE a SET x = 2 ;/* c */;\n"

		Convey("It should drop blank and comment fragments", func() {
			So(SplitStatements(payload), ShouldResemble, []string{
				"INSERT INTO a VALUES (1)",
				"UPDATE a SET x = 2",
			})
		})

		Convey("It should return nothing for an empty payload", func() {
			So(SplitStatements("  ;\n; "), ShouldBeEmpty)
		})
	})
}
