package loader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sdpower/ccledger/internal/logging"
	"github.com/sdpower/ccledger/internal/types"
)

// DefaultWorkers is the worker pool size used when none is configured.
const DefaultWorkers = 10

// ErrLineTooLong marks a line longer than the read limit; only that line is
// skipped.
var ErrLineTooLong = errors.New("line exceeds maximum length")

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 1024 * 1024
	// how often a file read checks for cancellation
	cancelCheckLines = 1024
)

// FileResult holds the events decoded from one file.
type FileResult struct {
	Path           string
	SessionKey     string
	Events         []types.UsageEvent
	SkippedLines   int
	DuplicateLines int
	IgnoredLines   int
}

type Loader struct {
	maxWorkers int
	log        *slog.Logger
}

func New() *Loader {
	return &Loader{
		maxWorkers: DefaultWorkers,
		log:        logging.Discard(),
	}
}

func (l *Loader) SetWorkers(n int) {
	if n > 0 {
		l.maxWorkers = n
	}
}

func (l *Loader) SetLogger(log *slog.Logger) {
	if log != nil {
		l.log = log
	}
}

// ResolveRoot descends into a projects subdirectory when root has one.
func ResolveRoot(root string) string {
	projects := filepath.Join(root, "projects")
	if info, err := os.Stat(projects); err == nil && info.IsDir() {
		return projects
	}
	return root
}

// FindFiles returns every .jsonl file under root in lexical order. A root
// that is missing, unreadable or not a directory is a fatal error;
// unreadable subdirectories are skipped.
func (l *Loader) FindFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: data path %s: %v", types.ErrFatalConfig, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: data path %s is not a directory", types.ErrFatalConfig, root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("%w: data path %s: %v", types.ErrFatalConfig, root, err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			l.log.Warn("walk_skip", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %v", types.ErrFatalConfig, root, err)
	}

	sort.Strings(files)
	l.log.Debug("files_found", "root", root, "count", len(files))
	return files, nil
}

// ReadFile decodes one file line by line. Malformed lines are counted and
// skipped; duplicate responses within the file are dropped.
func (l *Loader) ReadFile(ctx context.Context, root, path string) (*FileResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, types.LoaderError{Path: path, Err: err}
	}
	defer file.Close()

	res := &FileResult{Path: path, SessionKey: SessionKey(root, path)}
	seen := make(map[string]struct{})

	reader := newLineReader(file, maxLineBuffer)

	lineNum := 0
	var firstErr error
	for {
		raw, tooLong, readErr := reader.next()
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, types.LoaderError{Path: path, Err: readErr}
		}
		if readErr != nil && len(raw) == 0 && !tooLong {
			break
		}

		lineNum++
		if lineNum%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := l.decodeLine(res, seen, raw, tooLong); err != nil && firstErr == nil {
			firstErr = types.ParseError{Line: lineNum, Err: err}
		}
		if readErr != nil {
			break
		}
	}

	if firstErr != nil {
		l.log.Debug("lines_skipped", "file", filepath.Base(path), "count", res.SkippedLines, "first", firstErr)
	}
	return res, nil
}

// decodeLine folds one line into res and returns the error of a skipped line.
func (l *Loader) decodeLine(res *FileResult, seen map[string]struct{}, raw []byte, tooLong bool) error {
	if tooLong {
		res.SkippedLines++
		l.log.Warn("line_too_long", "file", res.Path, "limit", maxLineBuffer)
		return ErrLineTooLong
	}
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return nil
	}

	event, rec, err := DecodeLine(line, res.SessionKey)
	if err != nil {
		if errors.Is(err, ErrNotUsage) {
			res.IgnoredLines++
			return nil
		}
		res.SkippedLines++
		return err
	}

	if key := rec.DedupeKey(); key != "" {
		if _, dup := seen[key]; dup {
			res.DuplicateLines++
			return nil
		}
		seen[key] = struct{}{}
	}
	res.Events = append(res.Events, event)
	return nil
}

// lineReader yields newline-terminated lines up to max bytes. Longer lines
// are consumed and reported as too long without buffering them.
type lineReader struct {
	r   *bufio.Reader
	max int
	buf []byte
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, initialLineBuffer), max: max}
}

// next returns the following line without its terminator. The slice is only
// valid until the next call. err is io.EOF after the last line.
func (lr *lineReader) next() ([]byte, bool, error) {
	lr.buf = lr.buf[:0]
	tooLong := false
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if !tooLong {
			if len(lr.buf)+len(chunk) > lr.max+1 {
				tooLong = true
				lr.buf = lr.buf[:0]
			} else {
				lr.buf = append(lr.buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return nil, true, err
		}
		return bytes.TrimSuffix(lr.buf, []byte("\n")), false, err
	}
}

// LoadParallel reads paths on a bounded worker pool. visit is called from
// the worker that read file i, once per readable file. Unreadable files are
// reported in the returned diagnostics. Cancellation stops scheduling and
// returns the context error.
func (l *Loader) LoadParallel(ctx context.Context, root string, paths []string, visit func(i int, res *FileResult)) (types.Diagnostics, error) {
	var (
		mu   sync.Mutex
		diag = types.Diagnostics{FilesScanned: len(paths)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxWorkers)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := l.ReadFile(gctx, root, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				l.log.Warn("file_skipped", "file", path, "err", err)
				mu.Lock()
				diag.SkippedFiles = append(diag.SkippedFiles, types.FileWarning{Path: path, Reason: err.Error()})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			diag.SkippedLines += res.SkippedLines
			diag.DuplicateLines += res.DuplicateLines
			mu.Unlock()

			visit(i, res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return diag, err
	}
	if err := ctx.Err(); err != nil {
		return diag, err
	}

	sort.Slice(diag.SkippedFiles, func(a, b int) bool {
		return diag.SkippedFiles[a].Path < diag.SkippedFiles[b].Path
	})
	return diag, nil
}
