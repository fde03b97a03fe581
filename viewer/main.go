// The viewer serves read-only analytics over the parquet match archive.
// DuckDB queries the shards in place; nothing here ever writes to the
// archive or the move trees.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", "127.0.0.1:8081", "HTTP listen address")
	dataDirs := fs.String("data-dirs", "data/matches", "Comma-separated directories containing match parquet shards")
	refresh := fs.Duration("refresh", 30*time.Second, "How often to re-glob the archive for new shards")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("flag parse: %v", err)
	}

	roots := parseDataRoots(*dataDirs)
	log.Printf("Viewer data roots: %s", strings.Join(roots, ","))

	cache := NewDBCache(roots, *refresh)
	defer cache.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/matches", func(w http.ResponseWriter, r *http.Request) {
		withCORS(w, r)
		if r.Method == http.MethodOptions {
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		index, err := cache.GetMatchesIndex(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		limit := parseIntQuery(r, "limit", 200)
		offset := parseIntQuery(r, "offset", 0)
		if offset > len(index) {
			offset = len(index)
		}
		end := offset + limit
		if end > len(index) {
			end = len(index)
		}
		writeJSON(w, MatchesResponse{Total: int64(len(index)), Matches: index[offset:end]})
	})

	mux.HandleFunc("/api/matches/", func(w http.ResponseWriter, r *http.Request) {
		withCORS(w, r)
		if r.Method == http.MethodOptions {
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// /api/matches/{id}/turns
		rest := strings.TrimPrefix(r.URL.Path, "/api/matches/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] != "turns" {
			http.NotFound(w, r)
			return
		}
		matchID, err := url.PathUnescape(parts[0])
		if err != nil {
			http.Error(w, "bad match id", http.StatusBadRequest)
			return
		}

		db, err := cache.Get()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		turns, err := queryTurns(r.Context(), db, matchID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, turns)
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		withCORS(w, r)
		if r.Method == http.MethodOptions {
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		fromNs := parseInt64Query(r, "from_ns", 0)
		toNs := parseInt64Query(r, "to_ns", 0)
		bucketNs := parseInt64Query(r, "bucket_ns", 5*60*1_000_000_000)
		if bucketNs <= 0 {
			bucketNs = 5 * 60 * 1_000_000_000
		}
		if fromNs <= 0 || toNs <= 0 || toNs <= fromNs {
			// Default: last 24h.
			nowNs := time.Now().UnixNano()
			toNs = nowNs
			fromNs = nowNs - int64(24*time.Hour)
		}

		db, err := cache.Get()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		points, err := queryStats(r.Context(), db, fromNs, toNs, bucketNs)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, StatsResponse{FromNs: fromNs, ToNs: toNs, BucketNs: bucketNs, Points: points})
	})

	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("viewer listening on %s", *listen)
	log.Fatal(srv.ListenAndServe())
}

func parseDataRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	roots := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			roots = append(roots, p)
		}
	}
	return roots
}
