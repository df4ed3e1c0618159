package main

import (
	"chat-relay/domain/chat"
	"chat-relay/infrastructure/storage"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type inspectConfig struct {
	BadgerFilepath string `env:"BADGER_FILEPATH"`
	LogLevel       string `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	dbPath := flag.String("db", "", "Path to badger DB, defaults to BADGER_FILEPATH")
	limit := flag.Int("limit", 50, "Number of messages to show, 0 for all")
	prefix := flag.String("prefix", "", "Dump raw entries under this key prefix instead of messages")
	flag.Parse()

	if err := run(os.Stdout, *dbPath, *prefix, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run prints the most recent messages of a relay database, or its raw entries.
// The database is opened read-only so it can be inspected next to a stopped relay.
func run(out io.Writer, dbPath, prefix string, limit int) error {
	_ = godotenv.Load()
	var config inspectConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if dbPath == "" {
		dbPath = config.BadgerFilepath
	}
	if dbPath == "" {
		dbPath = database.DefaultPath
	}

	db, err := badger.Open(badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	if prefix != "" {
		return dumpEntries(out, db, prefix)
	}

	// Blob storage is never touched when listing
	repository := storage.NewMessageRepository(db, nil, log)
	messages, err := repository.ListMessages(limit)
	if err != nil {
		return err
	}
	renderMessages(out, messages)
	return nil
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func renderMessages(out io.Writer, messages []chat.Message) {
	table := newTable(out, []string{"Date", "Sender", "Receiver", "Content", "File", "Image", "Read"})
	for _, m := range messages {
		table.Append([]string{
			m.CreatedAt.Format(time.DateTime),
			string(m.SenderID),
			string(m.ReceiverID),
			m.Content,
			blobName(m.File),
			blobName(m.Image),
			fmt.Sprintf("%t", m.IsRead),
		})
	}
	table.Render()
}

func dumpEntries(out io.Writer, db *badger.DB, prefix string) error {
	table := newTable(out, []string{"Key", "Type", "Detail"})
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				kind, detail := storage.Describe(key, v)
				table.Append([]string{key, kind, detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func blobName(blob *chat.StoredBlob) string {
	if blob == nil {
		return "-"
	}
	return blob.Name
}
