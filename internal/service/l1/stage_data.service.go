package l1_service

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/util"

	"github.com/gocarina/gocsv"
)

const (
	colTimestamp = "timestamp"
	colSymbol    = "symbol"
)

// PathKey addresses one stage directory. Empty segments are left out of
// the path.
type PathKey struct {
	Stage    domain.Stage
	Symbol   string
	Strategy string
	WindowID string
}

func (k PathKey) String() string {
	out := string(k.Stage)
	for _, s := range []string{k.Symbol, k.Strategy, k.WindowID} {
		if s != "" {
			out += "/" + s
		}
	}
	return out
}

// StageDataService owns the on-disk layout of the backtest pipeline:
// paginated frames, completion markers and merged json artifacts.
type StageDataService interface {
	BaseDir() string
	GetDirectory(key PathKey) string
	GetFilePath(key PathKey, name, ext string) string

	MarkStageDone(key PathKey) error
	IsStageDone(key PathKey) bool
	HasError(key PathKey) bool
	WriteError(key PathKey, name string, cause error) error
	ClearDirectory(key PathKey) error

	ListPages(key PathKey, symbol string) ([]string, error)
	WritePage(key PathKey, symbol string, page int, f *domain.Frame) error
	WritePages(key PathKey, f *domain.Frame, pageSize int) error
	ReadPage(path string) (*domain.Frame, error)
	ReadPages(key PathKey, symbol string) (*domain.Frame, error)

	ReadJSON(key PathKey, name string, v any) error
	WriteJSON(key PathKey, name string, v any) error
	MergeJSON(key PathKey, name string, patch any) error
}

type stageDataServiceHandler struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStageDataService(baseDir string) StageDataService {
	return &stageDataServiceHandler{
		baseDir: baseDir,
		locks:   map[string]*sync.Mutex{},
	}
}

func (h *stageDataServiceHandler) BaseDir() string {
	return h.baseDir
}

func (h *stageDataServiceHandler) GetDirectory(key PathKey) string {
	parts := []string{h.baseDir, string(key.Stage)}
	for _, s := range []string{key.Symbol, key.Strategy, key.WindowID} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return filepath.Join(parts...)
}

func (h *stageDataServiceHandler) GetFilePath(key PathKey, name, ext string) string {
	return filepath.Join(h.GetDirectory(key), name+"."+ext)
}

// MarkStageDone removes any error marker, then renames a fresh done marker
// into place.
func (h *stageDataServiceHandler) MarkStageDone(key PathKey) error {
	dir := h.GetDirectory(key)
	if err := removeIfExists(filepath.Join(dir, key.Stage.ErrorMarker())); err != nil {
		return err
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, key.Stage.DoneMarker()), nil); err != nil {
		return fmt.Errorf("failed to mark %s done: %w", key, err)
	}
	return nil
}

func (h *stageDataServiceHandler) IsStageDone(key PathKey) bool {
	_, err := os.Stat(filepath.Join(h.GetDirectory(key), key.Stage.DoneMarker()))
	return err == nil
}

func (h *stageDataServiceHandler) HasError(key PathKey) bool {
	_, err := os.Stat(filepath.Join(h.GetDirectory(key), key.Stage.ErrorMarker()))
	return err == nil
}

type errorRow struct {
	Timestamp string `csv:"timestamp"`
	Stage     string `csv:"stage"`
	Key       string `csv:"key"`
	Error     string `csv:"error"`
}

// WriteError appends the failure to <name>.error.csv and swaps the done
// marker for the stage error marker.
func (h *stageDataServiceHandler) WriteError(key PathKey, name string, cause error) error {
	dir := h.GetDirectory(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, name+".error.csv")
	lock := h.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	_, statErr := os.Stat(path)
	exists := statErr == nil
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	rows := []errorRow{{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Stage:     string(key.Stage),
		Key:       key.String(),
		Error:     fmt.Sprint(cause),
	}}
	if exists {
		err = gocsv.MarshalWithoutHeaders(&rows, file)
	} else {
		err = gocsv.Marshal(&rows, file)
	}
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}

	if err := removeIfExists(filepath.Join(dir, key.Stage.DoneMarker())); err != nil {
		return err
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, key.Stage.ErrorMarker()), nil); err != nil {
		return fmt.Errorf("failed to mark %s failed: %w", key, err)
	}
	return nil
}

func (h *stageDataServiceHandler) ClearDirectory(key PathKey) error {
	dir := h.GetDirectory(key)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear %s: %w", dir, err)
		}
	}
	return nil
}

var pagePattern = regexp.MustCompile(`^(.+)_page(\d+)\.csv$`)

func pageName(symbol string, page int) string {
	return fmt.Sprintf("%s_page%d.csv", symbol, page)
}

// ListPages returns the page files of symbol in page order. A missing
// directory has no pages.
func (h *stageDataServiceHandler) ListPages(key PathKey, symbol string) ([]string, error) {
	dir := h.GetDirectory(key)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	type page struct {
		n    int
		path string
	}
	pages := []page{}
	for _, e := range entries {
		m := pagePattern.FindStringSubmatch(e.Name())
		if m == nil || m[1] != symbol {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

func (h *stageDataServiceHandler) WritePage(key PathKey, symbol string, page int, f *domain.Frame) error {
	path := filepath.Join(h.GetDirectory(key), pageName(symbol, page))
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := writeFrameCSV(file, f); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

// WritePages splits f into ascending pages of at most pageSize rows,
// numbered from 1.
func (h *stageDataServiceHandler) WritePages(key PathKey, f *domain.Frame, pageSize int) error {
	if pageSize <= 0 {
		pageSize = f.Len()
	}
	page := 1
	for lo := 0; lo < f.Len(); lo += pageSize {
		if err := h.WritePage(key, f.Symbol, page, f.Slice(lo, lo+pageSize)); err != nil {
			return err
		}
		page++
	}
	return nil
}

func (h *stageDataServiceHandler) ReadPage(path string) (*domain.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	f, err := readFrameCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// ReadPages loads every page of symbol, newest first, and stitches them into
// one ascending frame.
func (h *stageDataServiceHandler) ReadPages(key PathKey, symbol string) (*domain.Frame, error) {
	paths, err := h.ListPages(key, symbol)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no pages for %s in %s", domain.ErrEmptyFrame, symbol, key)
	}
	frames := make([]*domain.Frame, 0, len(paths))
	for i := len(paths) - 1; i >= 0; i-- {
		f, err := h.ReadPage(paths[i])
		if err != nil {
			return nil, err
		}
		if f.Symbol == "" {
			f.Symbol = symbol
		}
		frames = append(frames, f)
	}
	return domain.ConcatFrames(frames...)
}

func (h *stageDataServiceHandler) ReadJSON(key PathKey, name string, v any) error {
	return util.ReadJSON(h.GetFilePath(key, name, "json"), v)
}

func (h *stageDataServiceHandler) WriteJSON(key PathKey, name string, v any) error {
	path := h.GetFilePath(key, name, "json")
	lock := h.lockFor(path)
	lock.Lock()
	defer lock.Unlock()
	return util.WriteJSONAtomic(path, v)
}

// MergeJSON deep merges patch into the json object stored at name. The file
// lock is held only for the read, merge and atomic write.
func (h *stageDataServiceHandler) MergeJSON(key PathKey, name string, patch any) error {
	path := h.GetFilePath(key, name, "json")
	src, err := util.ToJSONMap(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch for %s: %w", path, err)
	}

	lock := h.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	dst := map[string]any{}
	if err := util.ReadJSON(path, &dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return util.WriteJSONAtomic(path, util.DeepMerge(dst, src))
}

func (h *stageDataServiceHandler) lockFor(path string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[path]
	if !ok {
		l = &sync.Mutex{}
		h.locks[path] = l
	}
	return l
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func writeFrameCSV(out io.Writer, f *domain.Frame) error {
	w := gocsv.DefaultCSVWriter(out)
	columns := f.Columns()
	header := append([]string{colTimestamp, colSymbol}, columns...)
	if err := w.Write(header); err != nil {
		return err
	}

	values := make([][]float64, len(columns))
	for j, name := range columns {
		values[j], _ = f.Column(name)
	}
	row := make([]string, len(header))
	for i, ts := range f.Timestamps {
		row[0] = ts.UTC().Format(time.RFC3339)
		row[1] = f.Symbol
		for j := range columns {
			row[j+2] = formatCell(values[j][i])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readFrameCSV(in io.Reader) (*domain.Frame, error) {
	records, err := gocsv.DefaultCSVReader(in).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", domain.ErrEmptyFrame)
	}
	header := records[0]
	tsIdx, symbolIdx := -1, -1
	for i, name := range header {
		switch name {
		case colTimestamp:
			tsIdx = i
		case colSymbol:
			symbolIdx = i
		}
	}
	if tsIdx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingInputColumn, colTimestamp)
	}

	rows := records[1:]
	timestamps := make([]time.Time, len(rows))
	symbol := ""
	for i, r := range rows {
		ts, err := parseTimestamp(r[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		timestamps[i] = ts
		if symbolIdx >= 0 && symbol == "" {
			symbol = r[symbolIdx]
		}
	}

	f := domain.NewFrame(symbol, timestamps)
	for j, name := range header {
		if j == tsIdx || j == symbolIdx {
			continue
		}
		col := make([]float64, len(rows))
		for i, r := range rows {
			v, err := parseCell(r[j])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, name, err)
			}
			col[i] = v
		}
		if err := f.SetColumn(name, col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return util.ParseDate(s)
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parseCell reads an empty cell as unavailable. Anything else must be a number.
func parseCell(s string) (float64, error) {
	if s == "" {
		return domain.Unavailable, nil
	}
	return strconv.ParseFloat(s, 64)
}
