package main

import (
	"flag"
	"fmt"
	"log"
	"match-chat/internal"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// Dumps the store of a stopped (or running, read-only) server as a table.
//
//	go run ./tools -db ./data/badger -prefix msg:
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "match:", "Prefix to scan (match:, chat:, msg:, user:, unread:)")
	limit := flag.Int("limit", 1000, "Maximum rows")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	rows, err := internal.Scan(db, *prefix, *limit, internal.DefaultMapper)
	if err != nil {
		log.Fatal(err)
	}

	render(rows)
	fmt.Printf("%d rows under %q\n", len(rows), *prefix)
}

// render prints rows as a borderless, tab padded table.
func render(rows []internal.InspectRow) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity", "Namespace", "Detail"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetTablePadding("\t")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, row := range rows {
		table.Append([]string{row.Key, row.Type, row.Timestamp, row.EntityID, row.Namespace, row.Detail})
	}
	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed writer leaves a log to truncate, which needs a writable open first.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
