package internal

import (
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"match-chat/domain"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const maxInspectRows = 500

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// NewDebugServer serves a read-only view of the store at /inspect?prefix=.
// The caller owns the returned server lifecycle.
func NewDebugServer(db *badger.DB, port int, statsProvider StatsProvider, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "match:"
		}
		data := PageData{Prefix: prefix, Stats: make(map[string]any)}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}
		items, err := Scan(db, prefix, maxInspectRows, DefaultMapper)
		if err != nil {
			log.Warn("Inspect scan failed", "prefix", prefix, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Items = items
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	return &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Scan maps at most limit entries under prefix, in key order.
func Scan(db *badger.DB, prefix string, limit int, mapper RowMapper) ([]InspectRow, error) {
	var rows []InspectRow
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p) && len(rows) < limit; it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				rows = append(rows, mapper(key, val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

// DefaultMapper knows the record layouts of the store and falls back to a raw row.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "default",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	switch parts[0] {
	case "match":
		var m domain.Match
		if json.Unmarshal(val, &m) == nil {
			row.Type = "MATCH"
			row.EntityID = shortID(m.ID)
			row.Timestamp = m.UpdatedAt.Format("15:04:05")
			row.Detail = fmt.Sprintf("%s -> %s %s", m.UserA, m.UserB, m.Status)
		}
	case "chat":
		var c domain.Chat
		if json.Unmarshal(val, &c) == nil {
			row.Type = "CHAT"
			row.EntityID = shortID(c.ID)
			row.Detail = strings.Join(c.Participants, ", ")
		}
	case "msg":
		var m domain.Message
		if len(parts) >= 4 && json.Unmarshal(val, &m) == nil {
			row.Type = "MESSAGE"
			row.Namespace = shortID(parts[1])
			if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
				row.Timestamp = time.Unix(0, tsNano).Format("15:04:05")
			}
			row.EntityID = shortID(parts[3])
			row.Detail = fmt.Sprintf("%s [%s] %s", m.SenderID, m.Type, m.Content)
		}
	case "user":
		var u domain.User
		if json.Unmarshal(val, &u) == nil {
			row.Type = "USER"
			row.EntityID = u.ID
			row.Timestamp = u.LastSeenAt.Format("15:04:05")
		}
	case "unread":
		if len(parts) == 3 && len(val) == 8 {
			row.Type = "UNREAD"
			row.Namespace = shortID(parts[1])
			row.EntityID = parts[2]
			row.Detail = strconv.FormatUint(binary.BigEndian.Uint64(val), 10)
		}
	}
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
