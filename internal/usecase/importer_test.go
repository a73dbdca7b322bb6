package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/sqlkeep/internal/domain"
)

func TestImportSQL(t *testing.T) {
	Convey("Given an SQL import", t, func() {
		db := newFakeDB()
		uc := NewImporter(db, &testLogger{}, 0)
		ctx := context.Background()

		Convey("When the payload contains a forbidden construct", func() {
			payloads := []string{
				"INSERT INTO a VALUES (1);\nload data infile '/etc/passwd' into table a;",
				"GrAnT ALL ON *.* TO 'x'@'%';",
				"create   user 'x'@'%' identified by 'y';",
				"Set Global max_connections = 1;",
				"SELECT LOAD_FILE('/etc/shadow');",
				"SELECT * FROM a INTO OUTFILE '/tmp/a';",
				"INSTALL PLUGIN x SONAME 'x.so';",
			}

			Convey("It should reject it before running anything", func() {
				for _, p := range payloads {
					_, err := uc.ImportSQL(ctx, p)
					So(errors.Is(err, domain.ErrForbiddenOperation), ShouldBeTrue)
					So(domain.KindOf(err), ShouldEqual, domain.KindSecurity)
				}
				So(db.statements(), ShouldBeEmpty)
			})
		})

		Convey("When statements fail", func() {
			db.execFn = func(stmt string, args []any) (int64, error) {
				if strings.Contains(stmt, "bad") {
					return 0, errors.New("Unknown column 'bad'")
				}
				return 1, nil
			}
			result, err := uc.ImportSQL(ctx, "-- seed\nINSERT INTO a VALUES (1);\nUPDATE a SET bad = 1;\n\nINSERT INTO a VALUES (2);")

			Convey("It should record warnings and keep going", func() {
				So(err, ShouldBeNil)
				So(result.Success, ShouldBeTrue)
				So(result.StatementsExecuted, ShouldEqual, 2)
				So(len(result.Warnings), ShouldEqual, 1)
				So(result.Warnings[0], ShouldContainSubstring, "Unknown column")
			})
		})

		Convey("When the payload changes session settings", func() {
			_, err := uc.ImportSQL(ctx, "SET FOREIGN_KEY_CHECKS=0;\nINSERT INTO a VALUES (1);\nSET SESSION sql_mode='';\nINSERT INTO a VALUES (2);")

			Convey("Every statement should run on one discarded connection", func() {
				So(err, ShouldBeNil)
				So(db.sessions(), ShouldResemble, []int{1, 1, 1, 1})
				So(db.sessionsOpened, ShouldEqual, 1)
				So(db.sessionsDiscarded, ShouldEqual, 1)
				So(db.sessionsClosed, ShouldEqual, 0)
			})
		})

		Convey("When the payload is too large", func() {
			uc = NewImporter(db, &testLogger{}, 10)
			_, err := uc.ImportSQL(ctx, "SELECT 1; SELECT 2;")

			So(errors.Is(err, domain.ErrPayloadTooLarge), ShouldBeTrue)
			So(domain.KindOf(err), ShouldEqual, domain.KindValidation)
			So(db.statements(), ShouldBeEmpty)
		})

		Convey("When the payload is empty", func() {
			_, err := uc.ImportSQL(ctx, "  \n ")
			So(domain.KindOf(err), ShouldEqual, domain.KindValidation)
		})
	})
}

func TestImportCSV(t *testing.T) {
	Convey("Given a CSV import into items(id, name, note)", t, func() {
		db := newFakeDB()
		db.addTable("items", "id", "name", "note")
		uc := NewImporter(db, &testLogger{}, 0)
		ctx := context.Background()

		Convey("When headers partially match", func() {
			result, err := uc.ImportCSV(ctx, domain.CSVImportRequest{
				Table:      "items",
				Data:       "name,ignored_column,note\nFrog,x,green\n\"Toad, brown\",y,\n",
				HasHeaders: true,
			})

			Convey("It should map only the known columns", func() {
				So(err, ShouldBeNil)
				So(result.ColumnsMapped, ShouldEqual, 2)
				So(result.RowsImported, ShouldEqual, 2)
				So(result.SkippedRows, ShouldEqual, 0)

				So(db.executed[0].stmt, ShouldEqual, "INSERT INTO `items` (`name`, `note`) VALUES (?, ?)")
				So(db.executed[0].args, ShouldResemble, []any{"Frog", "green"})
				So(db.executed[1].args, ShouldResemble, []any{"Toad, brown", ""})
			})
		})

		Convey("When headers differ in case", func() {
			result, err := uc.ImportCSV(ctx, domain.CSVImportRequest{
				Table: "items", Data: "NAME,Id\nFrog,7\n", HasHeaders: true,
			})

			Convey("It should use the table's spelling", func() {
				So(err, ShouldBeNil)
				So(result.ColumnsMapped, ShouldEqual, 2)
				So(db.executed[0].stmt, ShouldEqual, "INSERT INTO `items` (`name`, `id`) VALUES (?, ?)")
			})
		})

		Convey("When there is no header row", func() {
			result, err := uc.ImportCSV(ctx, domain.CSVImportRequest{
				Table: "items", Data: "1,Frog,green\n2,Toad\n",
			})

			Convey("It should fall back to the table columns", func() {
				So(err, ShouldBeNil)
				So(result.ColumnsMapped, ShouldEqual, 3)
				So(db.executed[0].stmt, ShouldEqual, "INSERT INTO `items` (`id`, `name`, `note`) VALUES (?, ?, ?)")
				So(db.executed[1].args, ShouldResemble, []any{"2", "Toad", nil})
			})
		})

		Convey("When no header matches", func() {
			_, err := uc.ImportCSV(ctx, domain.CSVImportRequest{
				Table: "items", Data: "foo,bar\n1,2\n", HasHeaders: true,
			})

			Convey("It should fail the whole batch", func() {
				So(err, ShouldNotBeNil)
				So(domain.KindOf(err), ShouldEqual, domain.KindValidation)
				So(db.statements(), ShouldBeEmpty)
			})
		})

		Convey("When replace is requested", func() {
			_, err := uc.ImportCSV(ctx, domain.CSVImportRequest{
				Table: "items", Data: "name\nFrog\n", HasHeaders: true, ReplaceData: true,
			})

			Convey("It should clear the table first", func() {
				So(err, ShouldBeNil)
				So(db.statements()[0], ShouldEqual, "DELETE FROM `items`")
				So(len(db.statements()), ShouldEqual, 2)
			})
		})

		Convey("When some rows fail", func() {
			db.execFn = func(stmt string, args []any) (int64, error) {
				if args[0] == "dup" {
					return 0, errors.New("Duplicate entry")
				}
				return 1, nil
			}
			result, err := uc.ImportCSV(ctx, domain.CSVImportRequest{
				Table: "items", Data: "name\nok\ndup\nok2\n", HasHeaders: true,
			})

			Convey("It should count them as skipped", func() {
				So(err, ShouldBeNil)
				So(result.RowsImported, ShouldEqual, 2)
				So(result.SkippedRows, ShouldEqual, 1)
			})
		})

		Convey("When the table does not exist", func() {
			for _, table := range []string{"missing", "items; DROP TABLE x"} {
				_, err := uc.ImportCSV(ctx, domain.CSVImportRequest{Table: table, Data: "a\n1\n", HasHeaders: true})
				So(errors.Is(err, domain.ErrTableNotFound), ShouldBeTrue)
				So(domain.KindOf(err), ShouldEqual, domain.KindNotFound)
			}
			So(db.statements(), ShouldBeEmpty)
		})
	})
}

func TestImportJSON(t *testing.T) {
	Convey("Given a JSON import into items(id, name, note)", t, func() {
		db := newFakeDB()
		db.addTable("items", "id", "name", "note")
		uc := NewImporter(db, &testLogger{}, 0)
		ctx := context.Background()

		Convey("When records mix known and unknown fields", func() {
			result, err := uc.ImportJSON(ctx, domain.JSONImportRequest{
				Table: "items",
				Data:  `[{"name":"Frog","color":"green","id":12345678901234567890},{"bad key":1,"other":2},{"note":{"a":[1,2]},"name":null}]`,
			})

			Convey("It should insert mapped fields and skip empty records", func() {
				So(err, ShouldBeNil)
				So(result.RecordsImported, ShouldEqual, 2)
				So(result.ValidationErrors, ShouldEqual, 1)
				So(result.FieldsMapped, ShouldEqual, 3)

				So(len(db.executed), ShouldEqual, 2)
				So(db.executed[0].stmt, ShouldEqual, "INSERT INTO `items` (`id`, `name`) VALUES (?, ?)")
				So(db.executed[0].args, ShouldResemble, []any{"12345678901234567890", "Frog"})
				So(db.executed[1].stmt, ShouldEqual, "INSERT INTO `items` (`name`, `note`) VALUES (?, ?)")
				So(db.executed[1].args, ShouldResemble, []any{nil, `{"a":[1,2]}`})
			})
		})

		Convey("When keys differ only in case", func() {
			_, err := uc.ImportJSON(ctx, domain.JSONImportRequest{
				Table: "items",
				Data:  `[{"NAME":"upper","name":"exact","Name":"title"},{"Name":"title","NAME":"upper"}]`,
			})

			Convey("The exact spelling should win, then the first key in sorted order", func() {
				So(err, ShouldBeNil)
				So(len(db.executed), ShouldEqual, 2)
				So(db.executed[0].args, ShouldResemble, []any{"exact"})
				So(db.executed[1].args, ShouldResemble, []any{"upper"})
			})
		})

		Convey("When a record fails to insert", func() {
			db.execFn = func(stmt string, args []any) (int64, error) {
				return 0, errors.New("Data too long")
			}
			result, err := uc.ImportJSON(ctx, domain.JSONImportRequest{Table: "items", Data: `[{"name":"x"}]`})

			Convey("It should count a validation error", func() {
				So(err, ShouldBeNil)
				So(result.RecordsImported, ShouldEqual, 0)
				So(result.ValidationErrors, ShouldEqual, 1)
				So(result.FieldsMapped, ShouldEqual, 0)
			})
		})

		Convey("When the payload is not an array of objects", func() {
			for _, data := range []string{`{"name":"x"}`, `[1,2]`, `not json`} {
				_, err := uc.ImportJSON(ctx, domain.JSONImportRequest{Table: "items", Data: data})
				So(domain.KindOf(err), ShouldEqual, domain.KindValidation)
			}
			So(db.statements(), ShouldBeEmpty)
		})
	})
}
