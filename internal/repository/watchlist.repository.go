package repository

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"algotrader/internal/db/models/postgres/public/model"
	"algotrader/internal/db/models/postgres/public/table"
	"algotrader/internal/util"

	"github.com/go-jet/jet/v2/postgres"
)

type WatchlistRepository interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, symbol string) error
	Remove(ctx context.Context, symbol string) error
}

// fileWatchlistRepositoryHandler reads one symbol per line. Blank lines and
// lines starting with # are ignored.
type fileWatchlistRepositoryHandler struct {
	path string
	mu   sync.Mutex
}

func NewFileWatchlistRepository(path string) WatchlistRepository {
	return &fileWatchlistRepositoryHandler{path: path}
}

func (h *fileWatchlistRepositoryHandler) List(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.read()
}

func (h *fileWatchlistRepositoryHandler) read() ([]string, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open watchlist: %w", err)
	}
	defer f.Close()

	seen := map[string]bool{}
	out := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbol := strings.ToUpper(line)
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}
	return out, nil
}

func (h *fileWatchlistRepositoryHandler) write(symbols []string) error {
	return util.WriteFileAtomic(h.path, []byte(strings.Join(symbols, "\n")+"\n"))
}

func (h *fileWatchlistRepositoryHandler) Add(ctx context.Context, symbol string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	symbols, err := h.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, s := range symbols {
		if s == symbol {
			return nil
		}
	}
	return h.write(append(symbols, symbol))
}

func (h *fileWatchlistRepositoryHandler) Remove(ctx context.Context, symbol string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	symbols, err := h.read()
	if err != nil {
		return err
	}
	out := []string{}
	for _, s := range symbols {
		if s != strings.ToUpper(symbol) {
			out = append(out, s)
		}
	}
	return h.write(out)
}

type watchlistRepositoryHandler struct {
	Db *sql.DB
}

func NewWatchlistRepository(db *sql.DB) WatchlistRepository {
	return watchlistRepositoryHandler{Db: db}
}

func (h watchlistRepositoryHandler) List(ctx context.Context) ([]string, error) {
	query := table.Watchlist.
		SELECT(table.Watchlist.AllColumns).
		ORDER_BY(table.Watchlist.Symbol.ASC())

	result := []model.Watchlist{}
	if err := query.QueryContext(ctx, h.Db, &result); err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	out := make([]string, len(result))
	for i, w := range result {
		out[i] = w.Symbol
	}
	sort.Strings(out)
	return out, nil
}

func (h watchlistRepositoryHandler) Add(ctx context.Context, symbol string) error {
	query := table.Watchlist.
		INSERT(table.Watchlist.AllColumns).
		MODEL(model.Watchlist{
			Symbol:    strings.ToUpper(symbol),
			CreatedAt: time.Now().UTC(),
		}).
		ON_CONFLICT(table.Watchlist.Symbol).
		DO_NOTHING()
	if _, err := query.ExecContext(ctx, h.Db); err != nil {
		return fmt.Errorf("failed to add %s to watchlist: %w", symbol, err)
	}
	return nil
}

func (h watchlistRepositoryHandler) Remove(ctx context.Context, symbol string) error {
	query := table.Watchlist.
		DELETE().
		WHERE(table.Watchlist.Symbol.EQ(postgres.String(strings.ToUpper(symbol))))
	if _, err := query.ExecContext(ctx, h.Db); err != nil {
		return fmt.Errorf("failed to remove %s from watchlist: %w", symbol, err)
	}
	return nil
}
