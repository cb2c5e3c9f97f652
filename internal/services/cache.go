package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"dirstat/internal/domain"
)

const (
	cacheHeader = "[dirstat 1.0 cache file]"
	cacheFooter = "[end of cache]"

	cacheFieldCount = 7
	// mtimeField indexes the mtime among the numeric fields.
	mtimeField = 2
	// The context is polled once per this many lines or entries.
	cacheCheckEvery = 1024
	cacheReadBuffer = 64 * 1024
)

const (
	flagExcluded = 1 << iota
	flagError
	flagIncomplete
)

var cacheEscaper = strings.NewReplacer("%", "%25", "\t", "%09", "\r", "%0D", "\n", "%0A")

// EncodeCache writes root and its subtree in cache line format. Only own
// metrics are written; totals are derived again on decode.
func EncodeCache(ctx context.Context, w io.Writer, root *domain.Entry) error {
	if root == nil {
		return ErrNoTree
	}
	out := bufio.NewWriter(w)
	fmt.Fprintln(out, cacheHeader)
	fmt.Fprintln(out, "# Generated by dirstat. Do not edit.")
	fmt.Fprintln(out, "# type path size blocks mtime links flags")

	var err error
	count := 0
	root.Walk(func(node *domain.Entry, _ int) bool {
		if err != nil {
			return false
		}
		count++
		if count%cacheCheckEvery == 0 {
			if err = ctx.Err(); err != nil {
				return false
			}
		}
		name := node.RelativePath()
		if node == root {
			name = filepath.ToSlash(root.Path())
		}
		_, err = out.WriteString(formatCacheLine(node, name))
		return true
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cacheFooter)
	return out.Flush()
}

func formatCacheLine(entry *domain.Entry, name string) string {
	typ, flags := "F", 0
	switch entry.Kind() {
	case domain.KindDir, domain.KindBusy:
		typ = "D"
	case domain.KindSymlink:
		typ = "L"
	case domain.KindSpecial:
		typ = "S"
	case domain.KindExcluded:
		typ, flags = "P", flagExcluded
	case domain.KindError:
		typ, flags = "P", flagError
	}
	if entry.Incomplete() || entry.Kind() == domain.KindBusy {
		flags |= flagIncomplete
	}
	if entry.IsPlaceholder() {
		return fmt.Sprintf("%s\t%s\t0\t0\t0\t0\t%d\n", typ, cacheEscaper.Replace(name), flags)
	}
	return fmt.Sprintf("%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
		typ, cacheEscaper.Replace(name), entry.Size(), entry.Blocks(), entry.ModTimeUnix(), entry.Links(), flags)
}

type openDir struct {
	entry *domain.Entry
	rel   string
}

type cacheDecoder struct {
	root  *domain.Entry
	stack []openDir
	line  int
}

// DecodeCache reads a tree written by EncodeCache. The returned root is fully
// aggregated and detached from any DirectoryTree.
func DecodeCache(ctx context.Context, r io.Reader) (*domain.Entry, error) {
	reader := bufio.NewReaderSize(r, cacheReadBuffer)
	decoder := &cacheDecoder{}
	ended := false
	for {
		raw, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			if errors.Is(readErr, io.ErrUnexpectedEOF) {
				readErr = fmt.Errorf("%w: %v", ErrTruncated, readErr)
			}
			return nil, &CacheIOError{Op: "read", Err: readErr}
		}
		if raw == "" && readErr == io.EOF {
			break
		}
		decoder.line++
		if decoder.line%cacheCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !strings.HasSuffix(raw, "\n") {
			// Partial last line.
			return nil, &CacheIOError{Op: "read", Err: fmt.Errorf("%w: unterminated line %d", ErrTruncated, decoder.line)}
		}
		text := strings.TrimRight(raw, "\r\n")

		if decoder.line == 1 {
			if text != cacheHeader {
				return nil, decoder.formatError("missing cache header")
			}
			continue
		}
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if ended {
			return nil, decoder.formatError("data after end marker")
		}
		if text == cacheFooter {
			ended = true
			continue
		}
		if err := decoder.decodeLine(text); err != nil {
			return nil, err
		}
	}
	if decoder.line == 0 {
		decoder.line = 1
		return nil, decoder.formatError("missing cache header")
	}
	if !ended {
		return nil, &CacheIOError{Op: "read", Err: fmt.Errorf("%w: missing end marker", ErrTruncated)}
	}
	if decoder.root == nil {
		return nil, decoder.formatError("no root entry")
	}
	return decoder.root, nil
}

func (decoder *cacheDecoder) decodeLine(text string) error {
	fields := strings.Split(text, "\t")
	if len(fields) != cacheFieldCount {
		return decoder.formatError(fmt.Sprintf("expected %d fields, got %d", cacheFieldCount, len(fields)))
	}
	name, err := url.PathUnescape(fields[1])
	if err != nil {
		return decoder.formatError(fmt.Sprintf("bad path escape: %v", err))
	}
	var numbers [5]int64
	for index := range numbers {
		value, parseErr := strconv.ParseInt(fields[index+2], 10, 64)
		// Modification times before 1970 are negative.
		if parseErr != nil || (value < 0 && index != mtimeField) {
			return decoder.formatError(fmt.Sprintf("bad number %q", fields[index+2]))
		}
		numbers[index] = value
	}
	metrics := domain.Metrics{Size: numbers[0], Blocks: numbers[1], ModTime: numbers[2], Links: uint64(numbers[3])}
	flags := numbers[4]

	kind, err := decoder.kindOf(fields[0], flags)
	if err != nil {
		return err
	}

	if decoder.root == nil {
		if !path.IsAbs(name) {
			return decoder.formatError("root path must be absolute")
		}
		decoder.root = decoder.newEntry(filepath.FromSlash(name), kind, metrics, flags)
		if kind == domain.KindDir {
			decoder.stack = append(decoder.stack, openDir{entry: decoder.root})
		}
		return nil
	}

	if name == "" || path.IsAbs(name) || path.Clean(name) != name || name == ".." || strings.HasPrefix(name, "../") {
		return decoder.formatError(fmt.Sprintf("bad relative path %q", name))
	}
	parentRel := path.Dir(name)
	if parentRel == "." {
		parentRel = ""
	}
	for len(decoder.stack) > 0 && decoder.stack[len(decoder.stack)-1].rel != parentRel {
		decoder.stack = decoder.stack[:len(decoder.stack)-1]
	}
	if len(decoder.stack) == 0 {
		return decoder.formatError(fmt.Sprintf("%q has no parent directory", name))
	}
	parent := decoder.stack[len(decoder.stack)-1].entry
	entry := decoder.newEntry(path.Base(name), kind, metrics, flags)
	if err := domain.AttachChild(parent, entry); err != nil {
		return decoder.formatError(err.Error())
	}
	if kind == domain.KindDir {
		decoder.stack = append(decoder.stack, openDir{entry: entry, rel: name})
	}
	return nil
}

func (decoder *cacheDecoder) kindOf(typ string, flags int64) (domain.Kind, error) {
	switch typ {
	case "D":
		return domain.KindDir, nil
	case "F":
		return domain.KindFile, nil
	case "L":
		return domain.KindSymlink, nil
	case "S":
		return domain.KindSpecial, nil
	case "P":
		switch {
		case flags&flagExcluded != 0:
			return domain.KindExcluded, nil
		case flags&flagError != 0:
			return domain.KindError, nil
		}
		return 0, decoder.formatError("placeholder without excluded or error flag")
	}
	return 0, decoder.formatError(fmt.Sprintf("unknown entry type %q", typ))
}

func (decoder *cacheDecoder) newEntry(name string, kind domain.Kind, metrics domain.Metrics, flags int64) *domain.Entry {
	if kind.IsPlaceholder() {
		return domain.NewPlaceholder(name, kind)
	}
	entry := domain.NewEntry(name, kind, metrics)
	if kind == domain.KindDir && flags&flagIncomplete != 0 {
		domain.MarkIncomplete(entry, true)
	}
	return entry
}

func (decoder *cacheDecoder) formatError(reason string) error {
	return &CacheFormatError{Line: decoder.line, Reason: reason}
}
